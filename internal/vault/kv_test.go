package vault

import (
	"context"
	"testing"
)

func TestBuildKV2Path(t *testing.T) {
	tests := []struct {
		name     string
		basePath string
		kvPath   string
		want     string
	}{
		{
			name:     "standard path",
			basePath: "secret",
			kvPath:   "strata/strata/secure_config_props",
			want:     "secret/data/strata/strata/secure_config_props",
		},
		{
			name:     "custom mount",
			basePath: "kv",
			kvPath:   "app/credentials",
			want:     "kv/data/app/credentials",
		},
		{
			name:     "single segment path",
			basePath: "secret",
			kvPath:   "keys",
			want:     "secret/data/keys",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildKV2Path(tt.basePath, tt.kvPath)
			if got != tt.want {
				t.Errorf("buildKV2Path(%q, %q) = %q, want %q", tt.basePath, tt.kvPath, got, tt.want)
			}
		})
	}
}

func TestBuildKV2MetadataPath(t *testing.T) {
	if got := buildKV2MetadataPath("secret", "a/b"); got != "secret/metadata/a/b" {
		t.Errorf("buildKV2MetadataPath() = %q, want %q", got, "secret/metadata/a/b")
	}
}

func TestExtractKV2Value(t *testing.T) {
	tests := []struct {
		name         string
		responseData map[string]interface{}
		want         string
		wantOK       bool
		wantErr      bool
	}{
		{
			name: "valid data",
			responseData: map[string]interface{}{
				"data":     map[string]interface{}{"value": "blob"},
				"metadata": map[string]interface{}{"version": 1},
			},
			want:   "blob",
			wantOK: true,
		},
		{
			name:         "missing data key",
			responseData: map[string]interface{}{},
		},
		{
			name:         "soft deleted version",
			responseData: map[string]interface{}{"data": nil},
		},
		{
			name: "missing value field",
			responseData: map[string]interface{}{
				"data": map[string]interface{}{"other": "x"},
			},
		},
		{
			name: "non-string value",
			responseData: map[string]interface{}{
				"data": map[string]interface{}{"value": 42},
			},
			wantErr: true,
		},
		{
			name:         "invalid data type",
			responseData: map[string]interface{}{"data": "not-a-map"},
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := extractKV2Value(tt.responseData, "test/path")

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("extractKV2Value() = %q, %v, want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestKVBackend_RoundTrip(t *testing.T) {
	srv := newFakeVaultServer(t)

	client, err := newClient(srv.URL, "secret", fakeToken)
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	backend := NewKVBackend(client, "strata")
	ctx := context.Background()

	if _, ok, err := backend.Get(ctx, "svc", "acct"); err != nil || ok {
		t.Fatalf("Get() on empty store = %v, %v; want absent", ok, err)
	}

	if err := backend.Set(ctx, "svc", "acct", "hello"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v, ok := srv.entry("strata/svc/acct"); !ok || v != "hello" {
		t.Errorf("stored entry = %q, %v; want hello", v, ok)
	}

	got, ok, err := backend.Get(ctx, "svc", "acct")
	if err != nil || !ok || got != "hello" {
		t.Fatalf("Get() = %q, %v, %v; want hello", got, ok, err)
	}

	if err := backend.Delete(ctx, "svc", "acct"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := srv.entry("strata/svc/acct"); ok {
		t.Error("entry still present after Delete()")
	}
}

func TestKVBackend_PermissionDenied(t *testing.T) {
	srv := newFakeVaultServer(t)

	client, err := newClient(srv.URL, "secret", "bad-token")
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	backend := NewKVBackend(client, "strata")

	_, _, err = backend.Get(context.Background(), "svc", "acct")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !isPermissionDenied(err) {
		t.Errorf("isPermissionDenied(%v) = false, want true", err)
	}
}

func TestKVBackend_ChunkedThroughVault(t *testing.T) {
	srv := newFakeVaultServer(t)

	client, err := newClient(srv.URL, "secret", fakeToken)
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	v := New("strata", NewKVBackend(client, "strata"), WithEntryLimit(true))

	long := makeString(4000)
	if err := v.Save(context.Background(), "blob", long); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, ok := srv.entry("strata/strata/blob-3"); !ok {
		t.Error("expected third chunk to be stored")
	}

	got, ok, err := v.Load(context.Background(), "blob")
	if err != nil || !ok {
		t.Fatalf("Load() = %v, %v", ok, err)
	}
	if got != long {
		t.Errorf("Load() returned %d bytes, want %d", len(got), len(long))
	}
}
