package config

import (
	"path/filepath"
	"strings"
	"testing"

	"go.dot.industries/strata/internal/schema"
)

func defaultIndex(t *testing.T) *schema.Index {
	t.Helper()
	idx, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default() error = %v", err)
	}
	return idx
}

func TestValidateLayer(t *testing.T) {
	idx := defaultIndex(t)

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "valid",
			doc: `{
				"profiles": {"dev": {"type": "ssh", "properties": {"host": "h", "port": 22}}},
				"defaults": {"ssh": "dev"},
				"secure": ["profiles.dev.properties.password"]
			}`,
		},
		{
			name: "unknown type is unchecked",
			doc:  `{"profiles": {"x": {"type": "custom", "properties": {"port": "any"}}}}`,
		},
		{
			name:    "wrong property type",
			doc:     `{"profiles": {"dev": {"type": "ssh", "properties": {"port": "twenty-two"}}}}`,
			wantErr: "layer",
		},
		{
			name:    "nested profile checked",
			doc:     `{"profiles": {"a": {"profiles": {"b": {"type": "ssh", "properties": {"port": "x"}}}}}}`,
			wantErr: "layer",
		},
		{
			name:    "autoStore not boolean",
			doc:     `{"autoStore": "yes"}`,
			wantErr: "layer",
		},
		{
			name:    "plaintext secure value",
			doc:     `{"profiles": {"dev": {"properties": {"password": "pw"}}}, "secure": ["profiles.dev.properties.password"]}`,
			wantErr: "plaintext",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLayer(layerOf(t, tt.doc), idx)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateLayer() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateLayer() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestStoreValidate_ReportsEveryProblem(t *testing.T) {
	project, global := testDirs(t)
	writeTestFile(t, filepath.Join(project, ConfigFileName),
		`{"profiles": {"dev": {"type": "ssh", "properties": {"port": "bad"}}}}`)
	writeTestFile(t, filepath.Join(global, ConfigFileName),
		`{"defaults": {"ssh": "missing"}}`)
	s := loadTestStore(t, project, global)

	err := s.Validate(defaultIndex(t))
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	msg := err.Error()
	for _, want := range []string{"project layer", `"missing" does not exist`} {
		if !strings.Contains(msg, want) {
			t.Errorf("Validate() error missing %q:\n%s", want, msg)
		}
	}
}

func TestStoreValidate_Clean(t *testing.T) {
	project, global := testDirs(t)
	writeTestFile(t, filepath.Join(project, ConfigFileName),
		`{"profiles": {"lpar": {"profiles": {"dev": {"type": "ssh"}}}}, "defaults": {"ssh": "lpar.dev"}}`)
	s := loadTestStore(t, project, global)

	if err := s.Validate(defaultIndex(t)); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
