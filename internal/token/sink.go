// Package token caches the HashiCorp Vault token obtained by AppRole login
// so that later invocations can skip the login.
package token

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// FileName is the cache file inside the global configuration directory.
	FileName = "vault-token"

	dirPerms  = 0700
	filePerms = 0600
)

// Sink reads and writes the cached token file.
type Sink struct {
	path string
}

// NewSink returns a sink storing the token in dir.
func NewSink(dir string) *Sink {
	return &Sink{path: filepath.Join(dir, FileName)}
}

// Path returns the token file path.
func (s *Sink) Path() string { return s.path }

// Read returns the cached token. A missing or blank file is not an error;
// ok is false.
func (s *Sink) Read() (string, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read token: %w", err)
	}

	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", false, nil
	}
	return tok, true, nil
}

// Write stores token with owner-only permissions, creating the directory
// if needed.
func (s *Sink) Write(token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("write token: token is empty")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), dirPerms); err != nil {
		return fmt.Errorf("write token: create directory: %w", err)
	}

	if err := os.WriteFile(s.path, []byte(token+"\n"), filePerms); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Remove deletes the cached token. A missing file is not an error.
func (s *Sink) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}
