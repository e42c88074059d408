package migrate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"go.dot.industries/strata/internal/config"
	"go.dot.industries/strata/internal/jsontree"
	"go.dot.industries/strata/internal/schema"
	"go.dot.industries/strata/internal/secure"
)

// ConvertedProfile is a legacy profile in layer form.
type ConvertedProfile struct {
	Name   string
	Type   string
	Source string
	// Properties holds the plain values, Secure the values bound for the
	// vault.
	Properties *jsontree.Object
	Secure     *jsontree.Object
}

// ConvertResult is the layer content derived from an inventory.
type ConvertResult struct {
	Profiles []ConvertedProfile
	// Defaults maps a profile type to the converted profile name.
	Defaults map[string]string
}

// Convert turns legacy profiles into layer profiles named <type>_<name>.
// Properties the schema of their type marks secure are separated out. The
// inventory is never mutated.
func Convert(inv *Inventory, idx *schema.Index) (*ConvertResult, error) {
	if inv == nil {
		return nil, fmt.Errorf("legacy inventory is required")
	}

	result := &ConvertResult{Defaults: make(map[string]string)}
	known := make(map[string]bool)

	for _, lp := range inv.Profiles {
		cp := ConvertedProfile{
			Name:       profileName(lp.Type, lp.Name),
			Type:       lp.Type,
			Source:     lp.Path,
			Properties: jsontree.NewObject(),
			Secure:     jsontree.NewObject(),
		}

		for _, key := range sortedKeys(lp.Properties) {
			v, err := jsontree.FromInterface(normalize(lp.Properties[key]))
			if err != nil {
				return nil, fmt.Errorf("converting %s of %s: %w", key, lp.Path, err)
			}
			if idx.IsSecure(lp.Type, key) {
				cp.Secure.Set(key, v)
				continue
			}
			cp.Properties.Set(key, v)
		}

		result.Profiles = append(result.Profiles, cp)
		known[lp.Type+"/"+lp.Name] = true
	}

	for _, profileType := range sortedKeys(inv.Defaults) {
		name := inv.Defaults[profileType]
		if !known[profileType+"/"+name] {
			log.Warn().
				Str("type", profileType).
				Str("profile", name).
				Msg("legacy default profile not found, skipping")
			continue
		}
		result.Defaults[profileType] = profileName(profileType, name)
	}

	return result, nil
}

// ApplyResult reports what Apply wrote and skipped.
type ApplyResult struct {
	Converted []string
	Skipped   []string
}

// Apply writes the converted profiles into the global team layer of store
// and saves it. Profiles that already exist there are skipped, as are
// defaults for types that already have one.
func Apply(ctx context.Context, store *config.Store, result *ConvertResult, vault secure.Store) (*ApplyResult, error) {
	if err := store.Activate(false, true, ""); err != nil {
		return nil, err
	}
	layer := store.ActiveLayer()
	out := &ApplyResult{}

	for _, cp := range result.Profiles {
		objPath := config.ProfileObjectPath(cp.Name)
		if _, exists := jsontree.GetPath(layer.Properties, objPath); exists {
			out.Skipped = append(out.Skipped, cp.Name)
			continue
		}

		if err := store.Set(objPath+".type", cp.Type, config.SetOptions{}); err != nil {
			return nil, err
		}
		if err := store.Set(objPath+".properties", cp.Properties.Clone(), config.SetOptions{}); err != nil {
			return nil, err
		}
		var setErr error
		cp.Secure.Range(func(key string, v jsontree.Value) bool {
			setErr = store.Set(config.PropertyPath(cp.Name, key), v, config.SetOptions{Secure: true})
			return setErr == nil
		})
		if setErr != nil {
			return nil, setErr
		}

		out.Converted = append(out.Converted, cp.Name)
	}

	for _, profileType := range sortedKeys(result.Defaults) {
		path := jsontree.JoinPath(config.KeyDefaults, profileType)
		if _, exists := jsontree.GetPath(layer.Properties, path); exists {
			continue
		}
		if err := store.Set(path, result.Defaults[profileType], config.SetOptions{}); err != nil {
			return nil, err
		}
	}

	if err := store.Save(ctx, vault); err != nil {
		return nil, fmt.Errorf("saving converted profiles: %w", err)
	}

	return out, nil
}
