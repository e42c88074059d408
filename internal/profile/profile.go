// Package profile resolves named profiles from a merged configuration
// document into their effective property sets.
package profile

import (
	"fmt"
	"strings"

	"go.dot.industries/strata/internal/config"
	"go.dot.industries/strata/internal/jsontree"
	"go.dot.industries/strata/internal/schema"
	"go.dot.industries/strata/internal/secure"
)

// Profile is the effective view of one profile after inheritance.
type Profile struct {
	Name       string
	Path       string
	Type       string
	Properties *jsontree.Object
	// Secure lists the names of properties whose values live in the vault.
	Secure []string
	// Profiles lists the names of directly nested profiles.
	Profiles []string
	// Origins maps each property to the profile path that supplied it.
	// Schema defaults have no origin.
	Origins map[string]string

	securePaths map[string]string
}

// Get returns a property value.
func (p *Profile) Get(name string) (jsontree.Value, bool) {
	return p.Properties.Get(name)
}

// IsSecure reports whether name is a secure property of the profile.
func (p *Profile) IsSecure(name string) bool {
	_, ok := p.securePaths[name]
	return ok
}

// SecurePath returns the full document path the vault value of a secure
// property is stored under.
func (p *Profile) SecurePath(name string) (string, bool) {
	path, ok := p.securePaths[name]
	return path, ok
}

// PropertyPath returns the document path of a property in the profile that
// supplied it, or in this profile when no ancestor did.
func (p *Profile) PropertyPath(name string) string {
	if path, ok := p.securePaths[name]; ok {
		return path
	}
	owner := p.Path
	if origin, ok := p.Origins[name]; ok {
		owner = origin
	}
	return config.PropertyPath(owner, name)
}

func (p *Profile) dropSecure(name string) {
	if _, ok := p.securePaths[name]; !ok {
		return
	}
	delete(p.securePaths, name)
	kept := p.Secure[:0]
	for _, n := range p.Secure {
		if n != name {
			kept = append(kept, n)
		}
	}
	p.Secure = kept
}

// ProfileNotFoundError reports a profile path with a hop that does not
// exist. Missing is the partial path up to and including that hop.
type ProfileNotFoundError struct {
	Path    string
	Missing string
}

func (e *ProfileNotFoundError) Error() string {
	if e.Missing == "" || e.Missing == e.Path {
		return fmt.Sprintf("profile %q not found", e.Path)
	}
	return fmt.Sprintf("profile %q not found: %q does not exist", e.Path, e.Missing)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSchemas fills properties missing from a typed profile with the
// defaults its schema declares.
func WithSchemas(idx *schema.Index) Option {
	return func(r *Resolver) {
		r.schemas = idx
	}
}

// Resolver reads profiles from a merged document. It never modifies the
// document.
type Resolver struct {
	doc     config.Document
	schemas *schema.Index
}

// New creates a Resolver over doc.
func New(doc config.Document, opts ...Option) *Resolver {
	r := &Resolver{doc: doc}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveActive resolves the default profile of profileType. It returns
// nil without error when no default is set. A default pointing at a
// missing profile is a ProfileNotFoundError.
func (r *Resolver) ResolveActive(profileType string) (*Profile, error) {
	target, ok := r.doc.Default(profileType)
	if !ok || target == "" {
		return nil, nil
	}
	return r.Resolve(target)
}

// Resolve walks a dotted profile path ("a.b.c") hop by hop. Nested
// profiles inherit the properties of their ancestors, closer profiles
// winning.
func (r *Resolver) Resolve(profilePath string) (*Profile, error) {
	segments := jsontree.SplitPath(profilePath)
	if len(segments) == 0 {
		return nil, &ProfileNotFoundError{Path: profilePath}
	}

	chain := make([]*jsontree.Object, 0, len(segments))
	level := r.doc.Profiles()
	for i, name := range segments {
		obj, ok := level.GetObject(name)
		if !ok {
			return nil, &ProfileNotFoundError{
				Path:    profilePath,
				Missing: jsontree.JoinPath(segments[:i+1]...),
			}
		}
		chain = append(chain, obj)

		level, ok = obj.GetObject(config.KeyProfiles)
		if !ok {
			level = jsontree.NewObject()
		}
	}

	securePaths := r.doc.Secure()

	p := &Profile{
		Name:        segments[len(segments)-1],
		Path:        jsontree.JoinPath(segments...),
		Properties:  jsontree.NewObject(),
		Origins:     make(map[string]string),
		securePaths: make(map[string]string),
	}

	for i, obj := range chain {
		hop := jsontree.JoinPath(segments[:i+1]...)

		if props, ok := obj.GetObject("properties"); ok {
			props.Range(func(name string, v jsontree.Value) bool {
				p.Properties.Set(name, v.Clone())
				p.Origins[name] = hop
				p.dropSecure(name)
				return true
			})
		}

		for _, name := range secureNames(hop, securePaths) {
			p.Properties.Delete(name)
			p.Origins[name] = hop
			if _, ok := p.securePaths[name]; !ok {
				p.Secure = append(p.Secure, name)
			}
			p.securePaths[name] = config.PropertyPath(hop, name)
		}
	}

	leaf := chain[len(chain)-1]
	p.Type, _ = leaf.GetString("type")
	if nested, ok := leaf.GetObject(config.KeyProfiles); ok {
		p.Profiles = nested.Keys()
	}

	if r.schemas != nil && p.Type != "" {
		r.schemas.Defaults(p.Type).Range(func(name string, v jsontree.Value) bool {
			if !p.Properties.Has(name) && !p.IsSecure(name) {
				p.Properties.Set(name, v)
			}
			return true
		})
	}

	return p, nil
}

// secureNames lists the properties of the profile at hop among the
// document's secure paths. Profile-level secure arrays are already part of
// those paths, so the merged profile object is not consulted.
func secureNames(hop string, securePaths []string) []string {
	var names []string
	prefix := config.PropertyPath(hop, "") + "."
	for _, path := range securePaths {
		name, ok := strings.CutPrefix(path, prefix)
		if !ok || name == "" || strings.Contains(name, ".") {
			continue
		}
		names = append(names, name)
	}
	return names
}

// MergeSecure returns a copy of p with the vault values of its secure
// properties filled in. values is keyed by full property path, as returned
// by config.Store.FlattenSecure. A secure property without a vault value
// stays absent.
func MergeSecure(p *Profile, values secure.Props) *Profile {
	out := p.clone()
	for _, name := range out.Secure {
		if v, ok := values[out.securePaths[name]]; ok {
			out.Properties.Set(name, v.Clone())
		}
	}
	return out
}

func (p *Profile) clone() *Profile {
	out := *p
	out.Properties = p.Properties.Clone()
	out.Secure = append([]string(nil), p.Secure...)
	out.Profiles = append([]string(nil), p.Profiles...)
	out.Origins = make(map[string]string, len(p.Origins))
	for k, v := range p.Origins {
		out.Origins[k] = v
	}
	out.securePaths = make(map[string]string, len(p.securePaths))
	for k, v := range p.securePaths {
		out.securePaths[k] = v
	}
	return &out
}

// ProfilesOfType lists the paths of every profile of profileType, parents
// first.
func (r *Resolver) ProfilesOfType(profileType string) []string {
	var out []string
	root := r.doc.Root()
	for _, path := range r.doc.ProfilePaths() {
		v, ok := jsontree.GetPath(root, config.ProfileObjectPath(path))
		if !ok {
			continue
		}
		obj, _ := v.AsObject()
		if t, _ := obj.GetString("type"); t == profileType {
			out = append(out, path)
		}
	}
	return out
}

// Types lists the distinct profile types used in the document, in order of
// first appearance.
func (r *Resolver) Types() []string {
	var out []string
	seen := make(map[string]bool)
	root := r.doc.Root()
	for _, path := range r.doc.ProfilePaths() {
		v, _ := jsontree.GetPath(root, config.ProfileObjectPath(path))
		obj, _ := v.AsObject()
		if t, ok := obj.GetString("type"); ok && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
