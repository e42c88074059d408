package vault

import (
	"context"
	"fmt"
	"strings"
)

const (
	// MaxCredentialLength is the per-entry cap of the Windows credential
	// manager.
	MaxCredentialLength = 2560

	// MaxChunkLength is floor(MaxCredentialLength*0.75) - 4, leaving room
	// for the base64 expansion done by the store.
	MaxChunkLength = MaxCredentialLength*3/4 - 4

	chunkTerminator = "\x00"
)

// Backend is an opaque secret store addressed by service and account.
// Get reports ok=false when the entry does not exist.
type Backend interface {
	Get(ctx context.Context, service, account string) (value string, ok bool, err error)
	Set(ctx context.Context, service, account, value string) error
}

// Deleter is implemented by backends that can remove entries.
type Deleter interface {
	Delete(ctx context.Context, service, account string) error
}

// Vault stores values for one service name in a Backend, splitting values
// into chunks when the backend has a small per-entry cap.
type Vault struct {
	service    string
	backend    Backend
	entryLimit bool
}

// Option configures a Vault.
type Option func(*Vault)

// WithEntryLimit enables chunking of values that do not fit in one entry.
func WithEntryLimit(enabled bool) Option {
	return func(v *Vault) {
		v.entryLimit = enabled
	}
}

// New creates a Vault for service backed by backend.
func New(service string, backend Backend, opts ...Option) *Vault {
	v := &Vault{
		service: service,
		backend: backend,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Service returns the service name entries are stored under.
func (v *Vault) Service() string {
	return v.service
}

// EntryLimit reports whether chunking is enabled.
func (v *Vault) EntryLimit() bool {
	return v.entryLimit
}

// Load reads the value stored under key. With the entry limit enabled,
// continuation chunks key-2, key-3, ... are read until the terminator is
// found. A chunk that fills a whole entry without a terminator must be
// followed by another one; a missing continuation is corruption, not absence.
func (v *Vault) Load(ctx context.Context, key string) (string, bool, error) {
	value, ok, err := v.backend.Get(ctx, v.service, key)
	if err != nil {
		return "", false, &VaultReadError{Key: key, Err: err}
	}
	if !ok {
		return "", false, nil
	}

	if !v.entryLimit {
		return value, true, nil
	}

	var sb strings.Builder
	sb.WriteString(value)
	last := value

	for n := 2; !strings.HasSuffix(last, chunkTerminator); n++ {
		if len(last) < MaxChunkLength {
			if n == 2 {
				// short entry written without chunking
				return sb.String(), true, nil
			}
			return "", false, &VaultReadError{
				Key: chunkKey(key, n-1),
				Err: &CorruptVaultDataError{Key: key, Reason: fmt.Sprintf("chunk %d is not terminated", n-1)},
			}
		}

		next := chunkKey(key, n)
		chunk, ok, err := v.backend.Get(ctx, v.service, next)
		if err != nil {
			return "", false, &VaultReadError{Key: next, Err: err}
		}
		if !ok {
			return "", false, &VaultReadError{
				Key: next,
				Err: &CorruptVaultDataError{Key: key, Reason: fmt.Sprintf("chunk %d missing", n)},
			}
		}

		sb.WriteString(chunk)
		last = chunk
	}

	return strings.TrimSuffix(sb.String(), chunkTerminator), true, nil
}

// Save writes value under key. With the entry limit enabled, values that do
// not fit in one entry are terminated with NUL and split into chunks.
// Chunks left over from an earlier, longer value are removed when the
// backend supports deletion.
func (v *Vault) Save(ctx context.Context, key, value string) error {
	if !v.entryLimit || len(value) < MaxChunkLength {
		if err := v.backend.Set(ctx, v.service, key, value); err != nil {
			return &VaultWriteError{Key: key, Err: err}
		}
		if v.entryLimit {
			return v.pruneChunks(ctx, key, 2)
		}
		return nil
	}

	chunks := splitChunks(value+chunkTerminator, MaxChunkLength)
	for i, chunk := range chunks {
		k := chunkKey(key, i+1)
		if err := v.backend.Set(ctx, v.service, k, chunk); err != nil {
			return &VaultWriteError{Key: k, Err: err}
		}
	}

	return v.pruneChunks(ctx, key, len(chunks)+1)
}

// pruneChunks deletes continuation entries starting at index from until the
// first absent one.
func (v *Vault) pruneChunks(ctx context.Context, key string, from int) error {
	deleter, ok := v.backend.(Deleter)
	if !ok {
		return nil
	}

	for n := from; ; n++ {
		k := chunkKey(key, n)
		_, exists, err := v.backend.Get(ctx, v.service, k)
		if err != nil {
			return &VaultReadError{Key: k, Err: err}
		}
		if !exists {
			return nil
		}
		if err := deleter.Delete(ctx, v.service, k); err != nil {
			return &VaultWriteError{Key: k, Err: err}
		}
	}
}

func chunkKey(key string, n int) string {
	if n <= 1 {
		return key
	}
	return fmt.Sprintf("%s-%d", key, n)
}

func splitChunks(s string, size int) []string {
	chunks := make([]string, 0, len(s)/size+1)
	for len(s) > size {
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	return append(chunks, s)
}
