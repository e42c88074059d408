package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/sync/errgroup"
)

const (
	profilesDirName = "profiles"
	profileExt      = ".toml"
	metaSuffix      = "_meta"

	defaultMaxConcurrency = 8
)

// LegacyProfile is one profile file of the old per-type layout,
// <dir>/profiles/<type>/<name>.toml.
type LegacyProfile struct {
	Type       string
	Name       string
	Path       string
	Properties map[string]any
}

// legacyMeta is the <type>_meta.toml file next to a type's profiles.
type legacyMeta struct {
	DefaultProfile string `toml:"defaultProfile"`
}

// Inventory is everything found in a legacy profiles directory.
type Inventory struct {
	Dir      string
	Profiles []LegacyProfile
	// Defaults maps a profile type to the name of its default profile.
	Defaults map[string]string
}

// Option configures Scan.
type Option func(*scanner)

type scanner struct {
	maxConcurrency int
}

// WithMaxConcurrency bounds the number of files read at once. Values less
// than 1 are ignored.
func WithMaxConcurrency(n int) Option {
	return func(s *scanner) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// ProfilesDir returns the legacy profiles directory under dir.
func ProfilesDir(dir string) string {
	return filepath.Join(dir, profilesDirName)
}

// Scan reads every legacy profile under dir. A missing profiles directory
// yields an empty inventory. Profiles are returned sorted by type and name.
func Scan(ctx context.Context, dir string, opts ...Option) (*Inventory, error) {
	s := &scanner{maxConcurrency: defaultMaxConcurrency}
	for _, opt := range opts {
		opt(s)
	}

	inv := &Inventory{Dir: dir, Defaults: make(map[string]string)}

	typeDirs, err := os.ReadDir(ProfilesDir(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return inv, nil
		}
		return nil, fmt.Errorf("reading legacy profiles %s: %w", ProfilesDir(dir), err)
	}

	var files []string
	for _, td := range typeDirs {
		if !td.IsDir() {
			continue
		}
		typeDir := filepath.Join(ProfilesDir(dir), td.Name())
		entries, err := os.ReadDir(typeDir)
		if err != nil {
			return nil, fmt.Errorf("reading legacy profiles %s: %w", typeDir, err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), profileExt) {
				files = append(files, filepath.Join(typeDir, e.Name()))
			}
		}
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)

	for _, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return readLegacyFile(file, &mu, inv)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(inv.Profiles, func(i, j int) bool {
		a, b := inv.Profiles[i], inv.Profiles[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Name < b.Name
	})

	return inv, nil
}

func readLegacyFile(path string, mu *sync.Mutex, inv *Inventory) error {
	profileType := filepath.Base(filepath.Dir(path))
	name := strings.TrimSuffix(filepath.Base(path), profileExt)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading legacy profile %s: %w", path, err)
	}

	if name == profileType+metaSuffix {
		var meta legacyMeta
		if err := toml.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("parsing legacy profile meta %s: %w", path, err)
		}
		if meta.DefaultProfile != "" {
			mu.Lock()
			inv.Defaults[profileType] = meta.DefaultProfile
			mu.Unlock()
		}
		return nil
	}

	props := make(map[string]any)
	if err := toml.Unmarshal(data, &props); err != nil {
		return fmt.Errorf("parsing legacy profile %s: %w", path, err)
	}
	// the type is implied by the directory
	delete(props, "type")

	mu.Lock()
	inv.Profiles = append(inv.Profiles, LegacyProfile{
		Type:       profileType,
		Name:       name,
		Path:       path,
		Properties: props,
	})
	mu.Unlock()

	return nil
}

// Remove deletes the legacy profiles directory.
func Remove(inv *Inventory) error {
	if err := os.RemoveAll(ProfilesDir(inv.Dir)); err != nil {
		return fmt.Errorf("removing legacy profiles %s: %w", ProfilesDir(inv.Dir), err)
	}
	return nil
}
