package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.dot.industries/strata/internal/jsontree"
)

// GlobalDir returns the global configuration directory: $STRATA_CLI_HOME
// when set, ~/.strata otherwise.
var GlobalDir = func() string {
	if dir := os.Getenv(HomeEnvVar); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("~", globalDirName)
	}
	return filepath.Join(home, globalDirName)
}

// LoadLayer reads one layer file. A missing file yields an empty document
// with exists=false.
func LoadLayer(path string) (*jsontree.Object, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return jsontree.NewObject(), false, nil
		}
		return nil, false, &ConfigIOError{Path: path, Op: "reading", Err: err}
	}

	obj, err := jsontree.ParseObject(data)
	if err != nil {
		return nil, false, &MalformedConfigError{Path: path, Err: err}
	}

	return obj, true, nil
}

// FindProjectDir walks up from startDir to the first directory holding a
// team or user layer file. The global directory is never a project
// directory. Returns "" when no such directory exists.
func FindProjectDir(startDir string, globalDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path for %s: %w", startDir, err)
	}

	skip := ""
	if globalDir != "" {
		if abs, err := filepath.Abs(globalDir); err == nil {
			skip = abs
		}
	}

	for {
		if dir != skip && hasLayerFile(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

func hasLayerFile(dir string) bool {
	for _, name := range []string{ConfigFileName, UserConfigFileName} {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// layerPath returns the file of the team or user layer in dir.
func layerPath(dir string, user bool) string {
	if user {
		return filepath.Join(dir, UserConfigFileName)
	}
	return filepath.Join(dir, ConfigFileName)
}
