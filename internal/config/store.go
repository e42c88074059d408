package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"go.dot.industries/strata/internal/jsontree"
	"go.dot.industries/strata/internal/secure"
)

const (
	dirPerms      = 0700
	teamFilePerms = 0644
	userFilePerms = 0600
)

// Layer slots in precedence order, highest first.
const (
	slotProjectUser = iota
	slotProject
	slotGlobalUser
	slotGlobal
	slotCount
)

// Store owns the layers of one invocation: it loads them, tracks the
// active layer and writes it back together with its secure values.
type Store struct {
	globalDir  string
	projectDir string
	cwd        string
	layers     [slotCount]*Layer
	active     int
	logger     zerolog.Logger

	// pending secure values by layer path, flushed on Save
	pending map[string]secure.Props
	// layers that declared secure paths when loaded
	hadSecure map[string]bool
}

// Option configures Load.
type Option func(*Store)

// WithCwd sets the directory the project search starts from.
func WithCwd(dir string) Option {
	return func(s *Store) {
		s.cwd = dir
	}
}

// WithGlobalDir overrides the global configuration directory.
func WithGlobalDir(dir string) Option {
	return func(s *Store) {
		s.globalDir = dir
	}
}

// WithLogger sets the logger used to report save inconsistencies.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Load locates and reads all four layers. A malformed or unreadable file
// aborts the whole load.
func Load(opts ...Option) (*Store, error) {
	s := &Store{
		logger:    log.Logger,
		pending:   make(map[string]secure.Props),
		hadSecure: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cwd == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		s.cwd = cwd
	}
	if s.globalDir == "" {
		s.globalDir = GlobalDir()
	}

	globalDir, err := filepath.Abs(s.globalDir)
	if err != nil {
		return nil, fmt.Errorf("resolving global directory %s: %w", s.globalDir, err)
	}
	s.globalDir = globalDir

	projectDir, err := FindProjectDir(s.cwd, s.globalDir)
	if err != nil {
		return nil, err
	}
	s.projectDir = projectDir

	// without a project the project slots point at the working directory
	// so that a first write creates them there
	base := projectDir
	if base == "" {
		base, err = filepath.Abs(s.cwd)
		if err != nil {
			return nil, fmt.Errorf("resolving absolute path for %s: %w", s.cwd, err)
		}
	}

	if err := s.loadPair(base, false); err != nil {
		return nil, err
	}
	if err := s.loadPair(s.globalDir, true); err != nil {
		return nil, err
	}

	s.active = slotProject
	if projectDir == "" {
		s.active = slotGlobal
	}

	return s, nil
}

func (s *Store) loadPair(dir string, global bool) error {
	for _, user := range []bool{true, false} {
		path := layerPath(dir, user)
		props, exists, err := LoadLayer(path)
		if err != nil {
			return err
		}

		l := &Layer{
			Path:       path,
			Exists:     exists,
			Global:     global,
			User:       user,
			Properties: props,
		}
		s.layers[slotFor(user, global)] = l
		s.hadSecure[path] = len(l.SecurePaths()) > 0
	}
	return nil
}

func slotFor(user, global bool) int {
	switch {
	case user && !global:
		return slotProjectUser
	case !user && !global:
		return slotProject
	case user && global:
		return slotGlobalUser
	default:
		return slotGlobal
	}
}

// Layers returns the layers, highest precedence first.
func (s *Store) Layers() []*Layer {
	out := make([]*Layer, slotCount)
	copy(out, s.layers[:])
	return out
}

// GlobalDir returns the global configuration directory.
func (s *Store) GlobalDir() string { return s.globalDir }

// ProjectDir returns the directory the project layers were found in, or ""
// when there is none.
func (s *Store) ProjectDir() string { return s.projectDir }

// Document merges the current in-memory state of all layers.
func (s *Store) Document() Document {
	return Merge(s.Layers())
}

// Origins maps each profile path to the layer that defines it with the
// highest precedence.
func (s *Store) Origins() map[string]string {
	return profileOrigins(s.Layers())
}

// LayerForProfile returns the highest-precedence layer defining profilePath.
func (s *Store) LayerForProfile(profilePath string) (*Layer, bool) {
	objPath := ProfileObjectPath(profilePath)
	for _, l := range s.layers {
		if v, ok := jsontree.GetPath(l.Properties, objPath); ok && v.Kind() == jsontree.KindObject {
			return l, true
		}
	}
	return nil, false
}

// LayerDefining returns the highest-precedence layer that holds a value for
// propertyPath or declares it secure.
func (s *Store) LayerDefining(propertyPath string) (*Layer, bool) {
	return owningLayer(s.layers[:], propertyPath)
}

// Activate selects the layer that Set and Save operate on. An empty
// projectDir selects the global pair regardless of global. A projectDir
// other than the current one re-reads the project pair from there.
func (s *Store) Activate(user, global bool, projectDir string) error {
	if projectDir == "" {
		global = true
	} else {
		dir, err := filepath.Abs(projectDir)
		if err != nil {
			return fmt.Errorf("resolving absolute path for %s: %w", projectDir, err)
		}
		if dir != filepath.Dir(s.layers[slotProject].Path) {
			if err := s.loadPair(dir, false); err != nil {
				return err
			}
		}
		s.projectDir = dir
	}

	s.active = slotFor(user, global)
	return nil
}

// ActiveLayer returns the layer selected for writes.
func (s *Store) ActiveLayer() *Layer {
	return s.layers[s.active]
}

// SetActiveLayer selects one of the store's layers directly.
func (s *Store) SetActiveLayer(layer *Layer) error {
	for i, l := range s.layers {
		if l == layer {
			s.active = i
			return nil
		}
	}
	return fmt.Errorf("layer %s does not belong to this store", layer.Path)
}

// Get returns the active layer.
func (s *Store) Get() LayerInfo {
	l := s.ActiveLayer()
	return LayerInfo{
		Path:       l.Path,
		Exists:     l.Exists,
		Properties: l.Properties,
	}
}

// Set writes value at propertyPath in the active layer. With opts.JSON the
// value must be a string holding JSON. Secure values, and values of paths
// the layer already declares secure, are kept out of the document and
// queued for the vault until Save.
func (s *Store) Set(propertyPath string, value any, opts SetOptions) error {
	if propertyPath == "" {
		return fmt.Errorf("property path is required")
	}

	v, err := toValue(value, opts.JSON)
	if err != nil {
		return fmt.Errorf("setting %s: %w", propertyPath, err)
	}

	l := s.ActiveLayer()

	if !opts.Secure && !l.IsSecure(propertyPath) {
		jsontree.SetPath(l.Properties, propertyPath, v)
		return nil
	}

	ensureParent(l.Properties, propertyPath)
	jsontree.DeletePath(l.Properties, propertyPath)
	if !l.IsSecure(propertyPath) {
		addSecurePath(l.Properties, propertyPath)
	}

	props := s.pending[l.Path]
	if props == nil {
		props = secure.Props{}
		s.pending[l.Path] = props
	}
	props[propertyPath] = v

	return nil
}

// Delete removes propertyPath from the active layer, including any secure
// declaration. The vault entry is pruned on the next Save.
func (s *Store) Delete(propertyPath string) bool {
	l := s.ActiveLayer()
	removed := jsontree.DeletePath(l.Properties, propertyPath)
	if removeSecurePath(l.Properties, propertyPath) {
		removed = true
	}
	delete(s.pending[l.Path], propertyPath)
	return removed
}

// Pending returns the queued secure values of the active layer.
func (s *Store) Pending() secure.Props {
	out := secure.Props{}
	for k, v := range s.pending[s.ActiveLayer().Path] {
		out[k] = v
	}
	return out
}

// Save writes the active layer to disk and, when it owns secure values,
// stores them through vault. If the vault write fails the file is restored
// to its previous content.
func (s *Store) Save(ctx context.Context, vault secure.Store) error {
	l := s.ActiveLayer()

	data, err := jsontree.EncodeObject(l.Properties)
	if err != nil {
		return fmt.Errorf("encoding config %s: %w", l.Path, err)
	}

	previous, existed, err := readPrevious(l.Path)
	if err != nil {
		return err
	}

	if err := writeLayer(l, data); err != nil {
		return err
	}
	l.Exists = true

	paths := l.SecurePaths()
	if len(paths) == 0 && len(s.pending[l.Path]) == 0 && !s.hadSecure[l.Path] {
		return nil
	}

	if err := s.saveSecure(ctx, vault, l, paths); err != nil {
		if rbErr := rollback(l.Path, previous, existed); rbErr != nil {
			s.logger.Error().
				Err(rbErr).
				Str("path", l.Path).
				Msg("config file updated but secure values were not; restore the file manually")
			return errors.Join(err, rbErr)
		}
		l.Exists = existed
		return err
	}

	delete(s.pending, l.Path)
	s.hadSecure[l.Path] = len(paths) > 0
	return nil
}

func (s *Store) saveSecure(ctx context.Context, vault secure.Store, l *Layer, paths []string) error {
	if vault == nil {
		return fmt.Errorf("saving secure values for %s: no vault configured", l.Path)
	}

	existing, err := secure.Load(ctx, vault, l.Path)
	if err != nil {
		return fmt.Errorf("loading secure values for %s: %w", l.Path, err)
	}

	declared := make(map[string]bool, len(paths))
	for _, p := range paths {
		declared[p] = true
	}

	props := secure.Props{}
	for p, v := range existing {
		if declared[p] {
			props[p] = v
		}
	}
	for p, v := range s.pending[l.Path] {
		if declared[p] {
			props[p] = v
		}
	}

	if err := secure.Save(ctx, vault, l.Path, props); err != nil {
		return fmt.Errorf("saving secure values for %s: %w", l.Path, err)
	}

	s.logger.Debug().
		Str("path", l.Path).
		Int("secure", len(props)).
		Msg("saved secure values")

	return nil
}

// SecureValues loads the secure values of every layer.
func (s *Store) SecureValues(ctx context.Context, vault secure.Store) (secure.ValueMap, error) {
	return secure.LoadAll(ctx, vault)
}

// FlattenSecure reduces the per-layer values to one map keyed by property
// path. Each layer only contributes the paths it declares secure, and a
// higher-precedence layer wins over a lower one.
func (s *Store) FlattenSecure(values secure.ValueMap) secure.Props {
	out := secure.Props{}
	for i := slotCount - 1; i >= 0; i-- {
		l := s.layers[i]
		props := values[l.Path]
		if props == nil {
			continue
		}
		for _, p := range l.SecurePaths() {
			if v, ok := props[p]; ok {
				out[p] = v
			}
		}
	}
	return out
}

// Reload re-reads every layer from disk and drops queued secure values. The
// active slot is kept.
func (s *Store) Reload() error {
	if err := s.loadPair(filepath.Dir(s.layers[slotProject].Path), false); err != nil {
		return err
	}
	if err := s.loadPair(s.globalDir, true); err != nil {
		return err
	}
	s.pending = make(map[string]secure.Props)
	return nil
}

func toValue(value any, parseJSON bool) (jsontree.Value, error) {
	if !parseJSON {
		return jsontree.FromInterface(value)
	}
	raw, ok := value.(string)
	if !ok {
		return jsontree.Value{}, fmt.Errorf("JSON value must be a string, got %T", value)
	}
	v, err := jsontree.Parse([]byte(raw))
	if err != nil {
		return jsontree.Value{}, fmt.Errorf("parsing JSON value: %w", err)
	}
	return v, nil
}

// ensureParent creates the objects leading up to path.
func ensureParent(root *jsontree.Object, path string) {
	segments := jsontree.SplitPath(path)
	if len(segments) < 2 {
		return
	}
	parent := jsontree.JoinPath(segments[:len(segments)-1]...)
	if v, ok := jsontree.GetPath(root, parent); ok && v.Kind() == jsontree.KindObject {
		return
	}
	jsontree.SetPath(root, parent, jsontree.FromObject(jsontree.NewObject()))
}

func addSecurePath(root *jsontree.Object, path string) {
	v, _ := root.Get(KeySecure)
	paths := v.StringSlice()
	for _, p := range paths {
		if p == path {
			return
		}
	}
	root.Set(KeySecure, jsontree.Strings(append(paths, path)))
}

func removeSecurePath(root *jsontree.Object, path string) bool {
	removed := false

	if v, ok := root.Get(KeySecure); ok {
		paths := v.StringSlice()
		kept := paths[:0]
		for _, p := range paths {
			if p == path {
				removed = true
				continue
			}
			kept = append(kept, p)
		}
		if removed {
			root.Set(KeySecure, jsontree.Strings(kept))
		}
	}

	profilePath, property, ok := SplitPropertyPath(path)
	if !ok {
		return removed
	}
	profile, ok := jsontree.GetPath(root, ProfileObjectPath(profilePath))
	if !ok {
		return removed
	}
	obj, _ := profile.AsObject()
	if v, ok := obj.Get(KeySecure); ok {
		names := v.StringSlice()
		kept := names[:0]
		found := false
		for _, n := range names {
			if n == property {
				found = true
				continue
			}
			kept = append(kept, n)
		}
		if found {
			obj.Set(KeySecure, jsontree.Strings(kept))
			removed = true
		}
	}
	return removed
}

func readPrevious(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, &ConfigIOError{Path: path, Op: "reading", Err: err}
	}
	return data, true, nil
}

func writeLayer(l *Layer, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(l.Path), dirPerms); err != nil {
		return &ConfigIOError{Path: l.Path, Op: "writing", Err: err}
	}

	perms := os.FileMode(teamFilePerms)
	if l.User {
		perms = userFilePerms
	}
	if err := os.WriteFile(l.Path, data, perms); err != nil {
		return &ConfigIOError{Path: l.Path, Op: "writing", Err: err}
	}
	return nil
}

func rollback(path string, previous []byte, existed bool) error {
	if !existed {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &ConfigIOError{Path: path, Op: "restoring", Err: err}
		}
		return nil
	}
	if err := os.WriteFile(path, previous, teamFilePerms); err != nil {
		return &ConfigIOError{Path: path, Op: "restoring", Err: err}
	}
	return nil
}
