package exec

import (
	"bytes"
	"context"
	"os/exec"
	"reflect"
	"strings"
	"testing"

	"go.dot.industries/strata/internal/jsontree"
)

func TestRun_echoCommand(t *testing.T) {
	var out bytes.Buffer

	err := Run(context.Background(), []string{"echo", "hello"}, nil, WithStdio(nil, &out, nil))
	if err != nil {
		t.Fatalf("Run(echo hello) returned unexpected error: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "hello" {
		t.Errorf("stdout = %q, want hello", got)
	}
}

func TestRun_envInjection(t *testing.T) {
	env := map[string]string{
		"STRATA_OPT_HOST": "example.com",
	}

	err := Run(context.Background(), []string{"sh", "-c", `test "$STRATA_OPT_HOST" = "example.com"`}, env)
	if err != nil {
		t.Fatalf("Run() with env injection failed: %v", err)
	}
}

func TestRun_dir(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	if err := Run(context.Background(), []string{"pwd"}, nil, WithDir(dir), WithStdio(nil, &out, nil)); err != nil {
		t.Fatalf("Run(pwd) error = %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != dir {
		t.Errorf("pwd = %q, want %q", got, dir)
	}
}

func TestRun_exitCodePropagation(t *testing.T) {
	err := Run(context.Background(), []string{"sh", "-c", "exit 42"}, nil)
	if err == nil {
		t.Fatal("Run() expected error for non-zero exit code, got nil")
	}

	if code := ExitCode(err); code != 42 {
		t.Errorf("ExitCode() = %d, want 42", code)
	}
}

func TestRun_emptyCommand(t *testing.T) {
	if err := Run(context.Background(), []string{}, nil); err == nil {
		t.Fatal("Run() expected error for empty command, got nil")
	}
}

func TestRun_missingBinary(t *testing.T) {
	err := Run(context.Background(), []string{"strata-no-such-binary"}, nil)
	if err == nil {
		t.Fatal("Run() expected error for a missing binary")
	}
	if ExitCode(err) != 1 {
		t.Errorf("ExitCode() = %d, want 1", ExitCode(err))
	}
}

func TestExitCode(t *testing.T) {
	exitErr := exec.Command("sh", "-c", "exit 7").Run()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"exit error", exitErr, 7},
		{"other error", exec.ErrNotFound, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEnvName(t *testing.T) {
	tests := []struct {
		property string
		want     string
	}{
		{"host", "STRATA_OPT_HOST"},
		{"rejectUnauthorized", "STRATA_OPT_REJECT_UNAUTHORIZED"},
		{"tokenValue", "STRATA_OPT_TOKEN_VALUE"},
		{"base-path", "STRATA_OPT_BASE_PATH"},
		{"v2Path", "STRATA_OPT_V2_PATH"},
		{"URL", "STRATA_OPT_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.property, func(t *testing.T) {
			if got := EnvName(tt.property); got != tt.want {
				t.Errorf("EnvName(%q) = %q, want %q", tt.property, got, tt.want)
			}
		})
	}
}

func TestProfileEnv(t *testing.T) {
	props := jsontree.NewObject()
	props.Set("host", jsontree.String("h"))
	props.Set("port", jsontree.Int(443))
	props.Set("rejectUnauthorized", jsontree.Bool(false))

	want := map[string]string{
		"STRATA_OPT_HOST":                "h",
		"STRATA_OPT_PORT":                "443",
		"STRATA_OPT_REJECT_UNAUTHORIZED": "false",
	}
	if got := ProfileEnv(props); !reflect.DeepEqual(got, want) {
		t.Errorf("ProfileEnv() = %v, want %v", got, want)
	}
}

func TestMergeEnv(t *testing.T) {
	tests := []struct {
		name       string
		current    []string
		additional map[string]string
		wantKey    string
		wantValue  string
	}{
		{
			name:       "adds new variable",
			current:    []string{"EXISTING=value"},
			additional: map[string]string{"NEW_VAR": "new_value"},
			wantKey:    "NEW_VAR",
			wantValue:  "new_value",
		},
		{
			name:       "overrides existing variable",
			current:    []string{"MY_VAR=old"},
			additional: map[string]string{"MY_VAR": "new"},
			wantKey:    "MY_VAR",
			wantValue:  "new",
		},
		{
			name:       "nil additional map",
			current:    []string{"KEEP=this"},
			additional: nil,
			wantKey:    "KEEP",
			wantValue:  "this",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := mergeEnv(tt.current, tt.additional)
			if found := findEnvValue(result, tt.wantKey); found != tt.wantValue {
				t.Errorf("mergeEnv() %s=%q, want %q", tt.wantKey, found, tt.wantValue)
			}
		})
	}
}

func TestSplitEnvEntry(t *testing.T) {
	tests := []struct {
		entry     string
		wantKey   string
		wantValue string
	}{
		{"KEY=VALUE", "KEY", "VALUE"},
		{"KEY=", "KEY", ""},
		{"KEY=VAL=UE", "KEY", "VAL=UE"},
		{"NOEQUALS", "NOEQUALS", ""},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			key, value := splitEnvEntry(tt.entry)
			if key != tt.wantKey || value != tt.wantValue {
				t.Errorf("splitEnvEntry(%q) = (%q, %q), want (%q, %q)",
					tt.entry, key, value, tt.wantKey, tt.wantValue)
			}
		})
	}
}

func findEnvValue(env []string, key string) string {
	for _, entry := range env {
		k, v := splitEnvEntry(entry)
		if k == key {
			return v
		}
	}
	return ""
}
