package token

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSink_WriteAndRead(t *testing.T) {
	s := NewSink(t.TempDir())

	if err := s.Write("s.abc123"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, ok, err := s.Read()
	if err != nil || !ok {
		t.Fatalf("Read() = %q, %v, %v", got, ok, err)
	}
	if got != "s.abc123" {
		t.Errorf("Read() = %q, want %q", got, "s.abc123")
	}
}

func TestSink_WriteCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", ".strata")
	s := NewSink(dir)

	if err := s.Write("s.xyz789"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("os.Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != dirPerms {
		t.Errorf("directory permissions = %o, want %o", perm, dirPerms)
	}

	info, err = os.Stat(s.Path())
	if err != nil {
		t.Fatalf("os.Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != filePerms {
		t.Errorf("file permissions = %o, want %o", perm, filePerms)
	}
}

func TestSink_WriteEmpty(t *testing.T) {
	if err := NewSink(t.TempDir()).Write("  "); err == nil {
		t.Error("Write() expected error for an empty token")
	}
}

func TestSink_Read(t *testing.T) {
	tests := []struct {
		name    string
		content *string
		want    string
		wantOK  bool
	}{
		{name: "missing file"},
		{name: "empty file", content: strPtr("")},
		{name: "whitespace only", content: strPtr("  \n\t\n  ")},
		{name: "trims whitespace", content: strPtr("  s.padded  \n"), want: "s.padded", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSink(t.TempDir())
			if tt.content != nil {
				if err := os.WriteFile(s.Path(), []byte(*tt.content), filePerms); err != nil {
					t.Fatal(err)
				}
			}

			got, ok, err := s.Read()
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Read() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSink_ReadUnreadable(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, FileName), 0700); err != nil {
		t.Fatal(err)
	}

	if _, _, err := NewSink(dir).Read(); err == nil {
		t.Error("Read() expected error when the token path is a directory")
	}
}

func TestSink_Remove(t *testing.T) {
	s := NewSink(t.TempDir())

	if err := s.Write("s.delete-me"); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Error("Remove() left the file behind")
	}
	if err := s.Remove(); err != nil {
		t.Errorf("Remove() of a missing file error = %v", err)
	}
}

func strPtr(s string) *string { return &s }
