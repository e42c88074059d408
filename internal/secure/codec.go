// Package secure encodes the secure property values of every layer into the
// single vault entry they share.
//
// The entry is base64 of a JSON object mapping absolute layer paths to
// {propertyPath: value} maps. Saving is a read-modify-write of the whole
// entry with no locking: two processes saving at once race and the last
// writer wins. Callers are expected to be the only writer.
package secure

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"go.dot.industries/strata/internal/jsontree"
	"go.dot.industries/strata/internal/vault"
)

// Account is the vault account holding the secure value entry.
const Account = "secure_config_props"

// Store is the subset of vault.Vault the codec needs.
type Store interface {
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string) error
}

// Props maps full property paths (profiles.p.properties.token) to values.
type Props map[string]jsontree.Value

// ValueMap is the decoded entry: layer path to Props.
type ValueMap map[string]Props

// Load returns the secure values stored for layerPath, or nil when neither
// the entry nor the layer's section exists.
func Load(ctx context.Context, store Store, layerPath string) (Props, error) {
	all, err := LoadAll(ctx, store)
	if err != nil {
		return nil, err
	}
	return all[layerPath], nil
}

// LoadAll decodes the whole entry. An absent or empty entry yields an empty
// map; anything non-empty that does not decode is corruption.
func LoadAll(ctx context.Context, store Store) (ValueMap, error) {
	raw, ok, err := store.Load(ctx, Account)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return ValueMap{}, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, &vault.CorruptVaultDataError{Key: Account, Reason: "entry is not valid base64"}
	}

	root, err := jsontree.ParseObject(decoded)
	if err != nil {
		return nil, &vault.CorruptVaultDataError{Key: Account, Reason: "entry is not a JSON object"}
	}

	out := make(ValueMap, root.Len())
	var decodeErr error
	root.Range(func(layerPath string, v jsontree.Value) bool {
		obj, ok := v.AsObject()
		if !ok {
			decodeErr = &vault.CorruptVaultDataError{
				Key:    Account,
				Reason: fmt.Sprintf("entry for %s is %s, expected object", layerPath, v.Kind()),
			}
			return false
		}
		props := make(Props, obj.Len())
		obj.Range(func(path string, pv jsontree.Value) bool {
			props[path] = pv
			return true
		})
		out[layerPath] = props
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}

	return out, nil
}

// Save replaces the section for layerPath and writes the entry back. Empty
// props remove the section. The existing entry is re-read on every call and
// never cached.
func Save(ctx context.Context, store Store, layerPath string, props Props) error {
	all, err := LoadAll(ctx, store)
	if err != nil {
		return fmt.Errorf("loading secure values: %w", err)
	}

	if len(props) == 0 {
		delete(all, layerPath)
	} else {
		all[layerPath] = props
	}

	encoded, err := encode(all)
	if err != nil {
		return fmt.Errorf("encoding secure values: %w", err)
	}

	if err := store.Save(ctx, Account, encoded); err != nil {
		return fmt.Errorf("saving secure values: %w", err)
	}
	return nil
}

// encode renders the map with sorted keys so identical content always
// produces an identical entry.
func encode(all ValueMap) (string, error) {
	root := jsontree.NewObject()
	for _, layerPath := range sortedKeys(all) {
		props := all[layerPath]
		obj := jsontree.NewObject()
		for _, path := range sortedKeys(props) {
			obj.Set(path, props[path])
		}
		root.Set(layerPath, jsontree.FromObject(obj))
	}

	data, err := root.MarshalJSON()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
