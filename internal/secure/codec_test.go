package secure

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"go.dot.industries/strata/internal/jsontree"
	"go.dot.industries/strata/internal/vault"
)

func newTestVault() (*vault.Vault, *vault.MemoryBackend) {
	backend := vault.NewMemoryBackend()
	return vault.New("strata", backend, vault.WithEntryLimit(true)), backend
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	v, _ := newTestVault()
	ctx := context.Background()

	props := Props{
		"profiles.p.properties.token":    jsontree.String("abc"),
		"profiles.p.properties.password": jsontree.String("s3cret"),
		"profiles.q.properties.port":     jsontree.Int(22),
	}

	if err := Save(ctx, v, "/home/u/.strata/strata.config.json", props); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(ctx, v, "/home/u/.strata/strata.config.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != len(props) {
		t.Fatalf("Load() returned %d props, want %d", len(got), len(props))
	}
	for path, want := range props {
		if !jsontree.Equal(got[path], want) {
			t.Errorf("%s = %s, want %s", path, got[path].Text(), want.Text())
		}
	}
}

func TestLoad_Absent(t *testing.T) {
	v, _ := newTestVault()

	got, err := Load(context.Background(), v, "/any/layer.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Errorf("Load() = %v, want nil", got)
	}
}

func TestSave_KeepsOtherLayers(t *testing.T) {
	v, _ := newTestVault()
	ctx := context.Background()

	if err := Save(ctx, v, "/a.json", Props{"x": jsontree.String("1")}); err != nil {
		t.Fatalf("Save(a) error = %v", err)
	}
	if err := Save(ctx, v, "/b.json", Props{"y": jsontree.String("2")}); err != nil {
		t.Fatalf("Save(b) error = %v", err)
	}

	all, err := LoadAll(ctx, v)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("LoadAll() has %d layers, want 2", len(all))
	}
}

func TestSave_EmptyRemovesLayer(t *testing.T) {
	v, backend := newTestVault()
	ctx := context.Background()

	if err := Save(ctx, v, "/a.json", Props{"x": jsontree.String("1")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := Save(ctx, v, "/a.json", nil); err != nil {
		t.Fatalf("Save(nil) error = %v", err)
	}

	raw, _, _ := backend.Get(ctx, "strata", Account)
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("stored entry is not base64: %v", err)
	}
	if string(decoded) != "{}" {
		t.Errorf("stored entry = %s, want {}", decoded)
	}
}

func TestLoadAll_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not base64", "%%%"},
		{"not json", base64.StdEncoding.EncodeToString([]byte("{oops"))},
		{"layer entry not an object", base64.StdEncoding.EncodeToString([]byte(`{"/a.json": "x"}`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := vault.NewMemoryBackend()
			_ = backend.Set(context.Background(), "strata", Account, tt.raw)
			v := vault.New("strata", backend)

			_, err := LoadAll(context.Background(), v)
			var corrupt *vault.CorruptVaultDataError
			if !errors.As(err, &corrupt) {
				t.Errorf("LoadAll() error = %v, want *CorruptVaultDataError", err)
			}
		})
	}
}

func TestSave_RefusesToOverwriteCorruptEntry(t *testing.T) {
	backend := vault.NewMemoryBackend()
	_ = backend.Set(context.Background(), "strata", Account, "%%%")
	v := vault.New("strata", backend)

	if err := Save(context.Background(), v, "/a.json", Props{"x": jsontree.String("1")}); err == nil {
		t.Fatal("expected error, got nil")
	}
	raw, _, _ := backend.Get(context.Background(), "strata", Account)
	if raw != "%%%" {
		t.Errorf("corrupt entry was overwritten with %q", raw)
	}
}

// Two writers that both read before either writes: the second write wins
// and the first writer's section is lost. The entry itself stays valid.
func TestSave_LastWriterWins(t *testing.T) {
	v, _ := newTestVault()
	ctx := context.Background()

	if err := Save(ctx, v, "/shared.json", Props{"k": jsontree.String("base")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	snapshotA, _ := LoadAll(ctx, v)
	snapshotB, _ := LoadAll(ctx, v)

	snapshotA["/a.json"] = Props{"k": jsontree.String("from-a")}
	snapshotB["/b.json"] = Props{"k": jsontree.String("from-b")}

	encodedA, _ := encode(snapshotA)
	encodedB, _ := encode(snapshotB)
	if err := v.Save(ctx, Account, encodedA); err != nil {
		t.Fatalf("writer A error = %v", err)
	}
	if err := v.Save(ctx, Account, encodedB); err != nil {
		t.Fatalf("writer B error = %v", err)
	}

	all, err := LoadAll(ctx, v)
	if err != nil {
		t.Fatalf("LoadAll() after race error = %v", err)
	}
	if _, ok := all["/a.json"]; ok {
		t.Error("writer A's section survived; expected last writer to win")
	}
	if got := all["/b.json"]["k"].Text(); got != "from-b" {
		t.Errorf("/b.json k = %q, want from-b", got)
	}
	if got := all["/shared.json"]["k"].Text(); got != "base" {
		t.Errorf("/shared.json k = %q, want base", got)
	}
}

func TestSave_LargeEntryIsChunked(t *testing.T) {
	v, backend := newTestVault()
	ctx := context.Background()

	props := Props{}
	for i := 0; i < 40; i++ {
		props[jsontree.JoinPath("profiles", "p", "properties", string(rune('a'+i%26))+string(rune('a'+i/26)))] =
			jsontree.String("0123456789012345678901234567890123456789012345678901234567890123456789")
	}

	if err := Save(ctx, v, "/big.json", props); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(backend.Accounts("strata")) < 2 {
		t.Errorf("expected the entry to be chunked, got keys %v", backend.Accounts("strata"))
	}

	got, err := Load(ctx, v, "/big.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != len(props) {
		t.Errorf("Load() returned %d props, want %d", len(got), len(props))
	}
}
