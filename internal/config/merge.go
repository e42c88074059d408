package config

import (
	"go.dot.industries/strata/internal/jsontree"
)

// Merge combines layers, given highest precedence first, into one document.
// Objects merge key by key, scalars and arrays from a higher layer replace
// lower ones, and the plugins and secure arrays are unioned. Layers are
// never mutated and merging the same layers always yields the same result.
// A path is secure in the result only when the layer owning it declares it
// secure.
func Merge(layers []*Layer) Document {
	root := jsontree.NewObject()

	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i] == nil || layers[i].Properties == nil {
			continue
		}
		mergeObject(root, layers[i].Properties, nil)
	}

	return Document{root: root, secure: effectiveSecure(layers), merged: true}
}

// effectiveSecure lists the secure paths of all layers, lowest layer first,
// keeping those whose owning layer declares them secure. A higher layer's
// plaintext value beats a lower layer's declaration.
func effectiveSecure(layers []*Layer) []string {
	out := []string{}
	seen := make(map[string]bool)
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i] == nil || layers[i].Properties == nil {
			continue
		}
		for _, p := range layers[i].SecurePaths() {
			if seen[p] {
				continue
			}
			seen[p] = true
			if owner, ok := owningLayer(layers, p); ok && owner.IsSecure(p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// owningLayer returns the highest-precedence layer that holds a value for
// propertyPath or declares it secure.
func owningLayer(layers []*Layer, propertyPath string) (*Layer, bool) {
	for _, l := range layers {
		if l == nil || l.Properties == nil {
			continue
		}
		if _, ok := jsontree.GetPath(l.Properties, propertyPath); ok {
			return l, true
		}
		if l.IsSecure(propertyPath) {
			return l, true
		}
	}
	return nil, false
}

// mergeObject merges src into dst. path holds the keys leading to dst.
func mergeObject(dst, src *jsontree.Object, path []string) {
	src.Range(func(key string, sv jsontree.Value) bool {
		dv, exists := dst.Get(key)

		switch {
		case exists && isUnionArray(path, key):
			dst.Set(key, unionArrays(dv, sv))
		case exists && dv.Kind() == jsontree.KindObject && sv.Kind() == jsontree.KindObject:
			dobj, _ := dv.AsObject()
			sobj, _ := sv.AsObject()
			mergeObject(dobj, sobj, appendPath(path, key))
		default:
			dst.Set(key, sv.Clone())
		}
		return true
	})
}

// isUnionArray reports whether key under path names an array that is
// unioned across layers: top-level plugins and secure, and the secure array
// of any profile.
func isUnionArray(path []string, key string) bool {
	if len(path) == 0 {
		return key == KeyPlugins || key == KeySecure
	}
	return key == KeySecure && isProfilePath(path)
}

// isProfilePath reports whether path addresses a profile object, i.e. has
// the shape profiles.<name>(.profiles.<name>)*.
func isProfilePath(path []string) bool {
	if len(path) < 2 || len(path)%2 != 0 {
		return false
	}
	for i := 0; i < len(path); i += 2 {
		if path[i] != KeyProfiles {
			return false
		}
	}
	return true
}

// unionArrays appends the entries of b missing from a. Non-array values
// are replaced by b.
func unionArrays(a, b jsontree.Value) jsontree.Value {
	aItems, aok := a.AsArray()
	bItems, bok := b.AsArray()
	if !aok || !bok {
		return b.Clone()
	}

	out := make([]jsontree.Value, 0, len(aItems)+len(bItems))
	for _, item := range aItems {
		out = appendUnique(out, item)
	}
	for _, item := range bItems {
		out = appendUnique(out, item)
	}
	return jsontree.Array(out...)
}

func appendUnique(items []jsontree.Value, v jsontree.Value) []jsontree.Value {
	for _, existing := range items {
		if jsontree.Equal(existing, v) {
			return items
		}
	}
	return append(items, v.Clone())
}

func appendPath(path []string, key string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = key
	return out
}

// profileOrigins maps every profile path (e.g. "lpar1.service1") to the path
// of the highest-precedence layer defining it.
func profileOrigins(layers []*Layer) map[string]string {
	origins := make(map[string]string)
	for i := len(layers) - 1; i >= 0; i-- {
		l := layers[i]
		if l == nil {
			continue
		}
		profiles, ok := l.Properties.GetObject(KeyProfiles)
		if !ok {
			continue
		}
		walkProfiles(profiles, "", func(profilePath string, _ *jsontree.Object) {
			origins[profilePath] = l.Path
		})
	}
	return origins
}

// walkProfiles calls fn for every profile in the tree, parents first.
func walkProfiles(profiles *jsontree.Object, parent string, fn func(profilePath string, profile *jsontree.Object)) {
	profiles.Range(func(name string, v jsontree.Value) bool {
		obj, ok := v.AsObject()
		if !ok {
			return true
		}
		profilePath := jsontree.JoinPath(parent, name)
		fn(profilePath, obj)
		if nested, ok := obj.GetObject(KeyProfiles); ok {
			walkProfiles(nested, profilePath, fn)
		}
		return true
	})
}

// ProfileObjectPath converts a profile path ("a.b") into the document path of
// the profile object ("profiles.a.profiles.b").
func ProfileObjectPath(profilePath string) string {
	segments := jsontree.SplitPath(profilePath)
	parts := make([]string, 0, 2*len(segments))
	for _, s := range segments {
		parts = append(parts, KeyProfiles, s)
	}
	return jsontree.JoinPath(parts...)
}

// PropertyPath returns the document path of a property of a profile.
func PropertyPath(profilePath, property string) string {
	return jsontree.JoinPath(ProfileObjectPath(profilePath), keyProperties, property)
}

// SplitPropertyPath splits a document path such as
// profiles.a.profiles.b.properties.host into the profile path "a.b" and the
// property name "host". ok is false for paths that do not address a profile
// property.
func SplitPropertyPath(path string) (profilePath, property string, ok bool) {
	segments := jsontree.SplitPath(path)
	n := len(segments)
	if n < 4 || segments[n-2] != keyProperties || !isProfilePath(segments[:n-2]) {
		return "", "", false
	}

	names := make([]string, 0, (n-2)/2)
	for i := 1; i < n-2; i += 2 {
		names = append(names, segments[i])
	}
	return jsontree.JoinPath(names...), segments[n-1], true
}

func securePaths(root *jsontree.Object) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	if v, ok := root.Get(KeySecure); ok {
		for _, p := range v.StringSlice() {
			add(p)
		}
	}

	if profiles, ok := root.GetObject(KeyProfiles); ok {
		walkProfiles(profiles, "", func(profilePath string, profile *jsontree.Object) {
			v, ok := profile.Get(KeySecure)
			if !ok {
				return
			}
			for _, name := range v.StringSlice() {
				add(PropertyPath(profilePath, name))
			}
		})
	}

	return out
}
