package config

import (
	"errors"
	"fmt"

	"go.dot.industries/strata/internal/jsontree"
	"go.dot.industries/strata/internal/schema"
)

// Validate checks every existing layer against the generated config schema
// and the merged document's defaults against its profiles. All problems are
// reported, not just the first.
func (s *Store) Validate(idx *schema.Index) error {
	var errs []error

	for _, l := range s.layers {
		if !l.Exists {
			continue
		}
		if err := ValidateLayer(l, idx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := ValidateDefaults(s.Document()); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ValidateLayer checks one layer's shape and typed profile properties.
func ValidateLayer(l *Layer, idx *schema.Index) error {
	if err := idx.ValidateLayer(l.Properties); err != nil {
		return fmt.Errorf("%s layer %s: %w", l.Name(), l.Path, err)
	}

	for _, p := range l.SecurePaths() {
		if _, ok := jsontree.GetPath(l.Properties, p); ok {
			return fmt.Errorf("%s layer %s: secure property %s has a plaintext value", l.Name(), l.Path, p)
		}
	}

	return nil
}

// ValidateDefaults checks that every default points at an existing profile.
func ValidateDefaults(doc Document) error {
	known := make(map[string]bool)
	for _, p := range doc.ProfilePaths() {
		known[p] = true
	}

	var errs []error
	doc.Defaults().Range(func(profileType string, v jsontree.Value) bool {
		target, ok := v.AsString()
		if !ok {
			errs = append(errs, fmt.Errorf("default for %q is not a profile path", profileType))
			return true
		}
		if !known[target] {
			errs = append(errs, fmt.Errorf("default %s profile %q does not exist", profileType, target))
		}
		return true
	})

	return errors.Join(errs...)
}
