// Package exec starts child processes on behalf of commands: the user's
// editor and commands run with a resolved profile in their environment.
package exec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"unicode"

	"go.dot.industries/strata/internal/jsontree"
)

// EnvPrefix starts the name of every profile property variable.
const EnvPrefix = "STRATA_OPT_"

// Option configures a child process.
type Option func(*exec.Cmd)

// WithStdio replaces the inherited standard streams. Nil streams are left
// inherited.
func WithStdio(in io.Reader, out, errOut io.Writer) Option {
	return func(c *exec.Cmd) {
		if in != nil {
			c.Stdin = in
		}
		if out != nil {
			c.Stdout = out
		}
		if errOut != nil {
			c.Stderr = errOut
		}
	}
}

// WithDir sets the working directory of the child.
func WithDir(dir string) Option {
	return func(c *exec.Cmd) {
		c.Dir = dir
	}
}

// Run executes command with env merged over the current environment, env
// winning. The standard streams are inherited unless overridden. The
// returned error preserves the child's exit code when available.
func Run(ctx context.Context, command []string, env map[string]string, opts ...Option) error {
	if len(command) == 0 {
		return fmt.Errorf("command must not be empty")
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Env = mergeEnv(os.Environ(), env)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	for _, opt := range opts {
		opt(cmd)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting command %q: %w", command[0], err)
	}

	stop := forwardSignals(ctx, cmd.Process)
	defer stop()

	return cmd.Wait()
}

// ExitCode extracts the exit code from an error returned by Run: 0 for
// nil, the child's code for an exit error and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return 1
}

// ProfileEnv turns profile properties into STRATA_OPT_ variables, e.g.
// rejectUnauthorized becomes STRATA_OPT_REJECT_UNAUTHORIZED. Strings are
// passed as-is, other values as JSON.
func ProfileEnv(props *jsontree.Object) map[string]string {
	env := make(map[string]string, props.Len())
	props.Range(func(name string, v jsontree.Value) bool {
		env[EnvName(name)] = v.Text()
		return true
	})
	return env
}

// EnvName returns the variable name carrying a property.
func EnvName(property string) string {
	var sb strings.Builder
	sb.WriteString(EnvPrefix)

	runes := []rune(property)
	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				sb.WriteByte('_')
			}
			sb.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(unicode.ToUpper(r))
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// mergeEnv overlays additional on current. Neither input is mutated and the
// result is sorted.
func mergeEnv(current []string, additional map[string]string) []string {
	envMap := make(map[string]string, len(current)+len(additional))
	for _, entry := range current {
		if key, value := splitEnvEntry(entry); key != "" {
			envMap[key] = value
		}
	}
	for k, v := range additional {
		envMap[k] = v
	}

	out := make([]string, 0, len(envMap))
	for k, v := range envMap {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// splitEnvEntry splits KEY=VALUE. An entry without "=" is all key.
func splitEnvEntry(entry string) (string, string) {
	key, value, _ := strings.Cut(entry, "=")
	return key, value
}
