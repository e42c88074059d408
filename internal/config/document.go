package config

import (
	"go.dot.industries/strata/internal/jsontree"
)

// Document is the merged view of all layers.
type Document struct {
	root *jsontree.Object
	// set by Merge, which knows which layer owns each secure path
	secure []string
	merged bool
}

// NewDocument wraps a parsed document.
func NewDocument(root *jsontree.Object) Document {
	if root == nil {
		root = jsontree.NewObject()
	}
	return Document{root: root}
}

// Root returns the underlying object. Callers must not mutate it.
func (d Document) Root() *jsontree.Object {
	if d.root == nil {
		return jsontree.NewObject()
	}
	return d.root
}

// Profiles returns the top-level profile map, empty when absent.
func (d Document) Profiles() *jsontree.Object {
	if p, ok := d.root.GetObject(KeyProfiles); ok {
		return p
	}
	return jsontree.NewObject()
}

// Defaults returns the profile type to profile path map.
func (d Document) Defaults() *jsontree.Object {
	if p, ok := d.root.GetObject(KeyDefaults); ok {
		return p
	}
	return jsontree.NewObject()
}

// Default returns the default profile path for a profile type.
func (d Document) Default(profileType string) (string, bool) {
	return d.Defaults().GetString(profileType)
}

// Plugins returns the merged plugin list.
func (d Document) Plugins() []string {
	v, _ := d.root.Get(KeyPlugins)
	return v.StringSlice()
}

// Secure returns the property paths whose values live in the vault. For a
// merged document these are the paths whose owning layer declares them
// secure; otherwise every declaration in the document counts.
func (d Document) Secure() []string {
	if d.merged {
		out := make([]string, len(d.secure))
		copy(out, d.secure)
		return out
	}
	return securePaths(d.root)
}

// AutoStore reports whether session values may be written back. Only an
// explicit false disables it.
func (d Document) AutoStore() bool {
	v, ok := d.root.Get(KeyAutoStore)
	if !ok {
		return true
	}
	b, isBool := v.AsBool()
	return !isBool || b
}

// Schema returns the $schema reference, if any.
func (d Document) Schema() string {
	s, _ := d.root.GetString(KeySchema)
	return s
}

// ProfilePaths lists every profile path in the document, parents first.
func (d Document) ProfilePaths() []string {
	var out []string
	walkProfiles(d.Profiles(), "", func(profilePath string, _ *jsontree.Object) {
		out = append(out, profilePath)
	})
	return out
}
