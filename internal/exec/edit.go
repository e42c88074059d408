package exec

import (
	"context"
	"fmt"
	"os"
	"runtime"

	shellquote "github.com/kballard/go-shellquote"
)

// EditorEnvVar names the variable holding the editor command line.
const EditorEnvVar = "EDITOR"

// EditorCommand returns the editor command line split into words: $EDITOR
// when set, otherwise notepad on Windows and vi elsewhere.
func EditorCommand() ([]string, error) {
	editor := os.Getenv(EditorEnvVar)
	if editor == "" {
		if runtime.GOOS == "windows" {
			return []string{"notepad"}, nil
		}
		return []string{"vi"}, nil
	}

	words, err := shellquote.Split(editor)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", EditorEnvVar, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%s is blank", EditorEnvVar)
	}
	return words, nil
}

// Edit opens path in the user's editor and waits for it to exit.
func Edit(ctx context.Context, path string, opts ...Option) error {
	command, err := EditorCommand()
	if err != nil {
		return err
	}
	if err := Run(ctx, append(command, path), nil, opts...); err != nil {
		return fmt.Errorf("editing %s: %w", path, err)
	}
	return nil
}
