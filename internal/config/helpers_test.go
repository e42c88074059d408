package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.dot.industries/strata/internal/jsontree"
)

// writeTestFile is a test helper that writes content to a file path.
func writeTestFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file %s: %v", path, err)
	}
}

// testDirs creates a project directory and a global directory under a
// temporary root.
func testDirs(t *testing.T) (project, global string) {
	t.Helper()
	root := t.TempDir()
	project = filepath.Join(root, "work", "repo")
	global = filepath.Join(root, "home", ".strata")
	for _, dir := range []string{project, global} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	return project, global
}

func loadTestStore(t *testing.T, cwd, global string) *Store {
	t.Helper()
	s, err := Load(WithCwd(cwd), WithGlobalDir(global))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s
}

func parseObject(t *testing.T, s string) *jsontree.Object {
	t.Helper()
	obj, err := jsontree.ParseObject([]byte(s))
	if err != nil {
		t.Fatalf("ParseObject() error = %v", err)
	}
	return obj
}

func layerOf(t *testing.T, s string) *Layer {
	t.Helper()
	return &Layer{Path: "/mem/" + t.Name(), Exists: true, Properties: parseObject(t, s)}
}

func getString(t *testing.T, root *jsontree.Object, path string) string {
	t.Helper()
	v, ok := jsontree.GetPath(root, path)
	if !ok {
		t.Fatalf("path %s not found", path)
	}
	s, ok := v.AsString()
	if !ok {
		t.Fatalf("path %s is %s, not a string", path, v.Kind())
	}
	return s
}
