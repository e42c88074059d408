// Package autostore writes values obtained while running a command, such
// as a freshly issued session token, back into the profile they belong to.
package autostore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"go.dot.industries/strata/internal/config"
	"go.dot.industries/strata/internal/jsontree"
	"go.dot.industries/strata/internal/profile"
	"go.dot.industries/strata/internal/schema"
	"go.dot.industries/strata/internal/secure"
)

const redacted = "***"

// ActiveProfile identifies the profile a command ran against.
type ActiveProfile struct {
	LayerPath   string
	ProfilePath string
	ProfileType string
}

// FindOptions describe how a command picked its profiles.
type FindOptions struct {
	// ProfileTypes in the order the command consults them.
	ProfileTypes []string
	// Explicit maps a profile type to the profile path named on the command
	// line, if any.
	Explicit map[string]string
}

// StoreOptions describe the values to persist.
type StoreOptions struct {
	// Profile receiving the values. When nil it is found with Find.
	Profile *ActiveProfile
	Find    FindOptions
	// Session holds the values, as a struct with mapstructure tags or a map.
	Session any
	// PropsToStore names the session values to write.
	PropsToStore []string
}

// Warning reports values that could not be persisted. The command that
// produced them has still succeeded.
type Warning struct {
	ProfilePath string
	Message     string
}

func (w *Warning) String() string {
	if w.ProfilePath == "" {
		return w.Message
	}
	return fmt.Sprintf("profile %s: %s", w.ProfilePath, w.Message)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSchemas lets the coordinator store properties the schema marks as
// secure in the vault.
func WithSchemas(idx *schema.Index) Option {
	return func(c *Coordinator) {
		c.schemas = idx
	}
}

// WithLogger sets the logger warnings are reported to.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// Coordinator persists session values through a config store.
type Coordinator struct {
	store   *config.Store
	vault   secure.Store
	schemas *schema.Index
	logger  zerolog.Logger
}

// New creates a Coordinator writing through store and vault.
func New(store *config.Store, vault secure.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  store,
		vault:  vault,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindActiveProfile returns the first profile, in type order, that the
// command used: an explicitly named profile beats the type's default. It
// returns nil when no type has either.
func (c *Coordinator) FindActiveProfile(opts FindOptions) (*ActiveProfile, error) {
	doc := c.store.Document()

	for _, profileType := range opts.ProfileTypes {
		path := opts.Explicit[profileType]
		if path == "" {
			path, _ = doc.Default(profileType)
		}
		if path == "" {
			continue
		}

		layer, ok := c.store.LayerForProfile(path)
		if !ok {
			return nil, &profile.ProfileNotFoundError{Path: path, Missing: path}
		}

		return &ActiveProfile{
			LayerPath:   layer.Path,
			ProfilePath: path,
			ProfileType: profileType,
		}, nil
	}

	return nil, nil
}

// StoreSessionProperties writes the requested session values into the
// profile that supplied them, in the layer that defines them, and saves.
// It does nothing when autoStore is disabled. Failures are returned as a
// Warning with secret values redacted, never as an error.
func (c *Coordinator) StoreSessionProperties(ctx context.Context, opts StoreOptions) *Warning {
	if !c.store.Document().AutoStore() {
		c.logger.Debug().Msg("autoStore disabled, not storing session values")
		return nil
	}

	active := opts.Profile
	if active == nil {
		found, err := c.FindActiveProfile(opts.Find)
		if err != nil {
			return c.warn("", err.Error(), nil)
		}
		active = found
	}
	if active == nil {
		return nil
	}

	session, err := decodeSession(opts.Session)
	if err != nil {
		return c.warn(active.ProfilePath, fmt.Sprintf("decoding session: %v", err), nil)
	}

	values, secrets, err := c.collect(active, session, opts.PropsToStore)
	if err != nil {
		return c.warn(active.ProfilePath, err.Error(), secrets)
	}
	if len(values) == 0 {
		return nil
	}

	if err := c.write(ctx, values); err != nil {
		return c.warn(active.ProfilePath, err.Error(), secrets)
	}
	return nil
}

type pendingValue struct {
	layer  *config.Layer
	path   string
	value  jsontree.Value
	secure bool
}

func (c *Coordinator) collect(active *ActiveProfile, session map[string]any, props []string) ([]pendingValue, []string, error) {
	p, err := profile.New(c.store.Document()).Resolve(active.ProfilePath)
	if err != nil {
		return nil, nil, err
	}

	profileType := active.ProfileType
	if p.Type != "" {
		profileType = p.Type
	}

	var (
		out     []pendingValue
		secrets []string
	)
	for _, name := range props {
		raw, ok := session[name]
		if !ok || raw == nil {
			continue
		}
		v, err := jsontree.FromInterface(raw)
		if err != nil {
			return nil, secrets, fmt.Errorf("converting %s: %w", name, err)
		}
		if v.Kind() == jsontree.KindString {
			secrets = append(secrets, v.Text())
		}

		path := p.PropertyPath(name)
		layer, ok := c.store.LayerDefining(path)
		if !ok {
			owner := active.ProfilePath
			if origin, has := p.Origins[name]; has {
				owner = origin
			}
			layer, ok = c.store.LayerForProfile(owner)
		}
		if !ok {
			return nil, secrets, fmt.Errorf("no layer defines profile %s", active.ProfilePath)
		}

		out = append(out, pendingValue{
			layer:  layer,
			path:   path,
			value:  v,
			secure: c.schemas.IsSecure(profileType, name) || p.IsSecure(name) || layer.IsSecure(path),
		})
	}

	return out, secrets, nil
}

// write sets the values layer by layer, saving each layer once. The active
// layer of the store is restored afterwards.
func (c *Coordinator) write(ctx context.Context, values []pendingValue) error {
	previous := c.store.ActiveLayer()
	defer func() {
		_ = c.store.SetActiveLayer(previous)
	}()

	var (
		order   []*config.Layer
		byLayer = make(map[*config.Layer][]pendingValue)
	)
	for _, v := range values {
		if _, seen := byLayer[v.layer]; !seen {
			order = append(order, v.layer)
		}
		byLayer[v.layer] = append(byLayer[v.layer], v)
	}

	var errs []error
	for _, layer := range order {
		if err := c.store.SetActiveLayer(layer); err != nil {
			errs = append(errs, err)
			continue
		}
		for _, v := range byLayer[layer] {
			if err := c.store.Set(v.path, v.value, config.SetOptions{Secure: v.secure}); err != nil {
				errs = append(errs, err)
			}
		}
		if err := c.store.Save(ctx, c.vault); err != nil {
			errs = append(errs, fmt.Errorf("saving %s: %w", layer.Path, err))
			continue
		}
		c.logger.Debug().
			Str("layer", layer.Path).
			Int("properties", len(byLayer[layer])).
			Msg("stored session values")
	}

	return errors.Join(errs...)
}

func (c *Coordinator) warn(profilePath, msg string, secrets []string) *Warning {
	w := &Warning{ProfilePath: profilePath, Message: redact(msg, secrets)}
	c.logger.Warn().Str("profile", profilePath).Msg(w.Message)
	return w
}

func redact(msg string, secrets []string) string {
	for _, s := range secrets {
		if s != "" {
			msg = strings.ReplaceAll(msg, s, redacted)
		}
	}
	return msg
}

func decodeSession(session any) (map[string]any, error) {
	out := map[string]any{}
	if session == nil {
		return out, nil
	}
	if err := mapstructure.Decode(session, &out); err != nil {
		return nil, err
	}
	return out, nil
}
