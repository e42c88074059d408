// Package schema maps profile types to the JSON schemas describing their
// properties. Schemas are used to validate and default profile properties,
// to decide which properties are secure and to generate the schema file
// written next to layer files.
package schema

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"strconv"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"go.dot.industries/strata/internal/jsontree"
)

// BaseURL prefixes the resource URLs schemas are compiled under.
const BaseURL = "https://strata.dot.industries/schemas/"

//go:embed profiles/*.json
var builtinFS embed.FS

// Source is a profile type and the raw JSON schema of its properties.
type Source struct {
	Type   string
	Schema []byte
}

// Property describes one property of a profile type.
type Property struct {
	Name        string
	Type        string
	Description string
	Default     jsontree.Value
	HasDefault  bool
	Secure      bool
}

// Definition is a compiled profile type schema.
type Definition struct {
	Type        string
	Title       string
	Description string
	Properties  []Property

	raw      *jsontree.Object
	compiled *jsonschema.Schema
}

// Property returns the named property definition.
func (d *Definition) Property(name string) (Property, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Index holds the definitions of all registered profile types.
type Index struct {
	types []string
	defs  map[string]*Definition
	layer *jsonschema.Schema
}

// Builtin returns the profile type schemas shipped with the binary, ordered
// by type name.
func Builtin() ([]Source, error) {
	entries, err := builtinFS.ReadDir("profiles")
	if err != nil {
		return nil, fmt.Errorf("reading builtin schemas: %w", err)
	}

	sources := make([]Source, 0, len(entries))
	for _, e := range entries {
		data, err := builtinFS.ReadFile(path.Join("profiles", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading builtin schema %s: %w", e.Name(), err)
		}
		sources = append(sources, Source{
			Type:   strings.TrimSuffix(e.Name(), ".json"),
			Schema: data,
		})
	}
	return sources, nil
}

// Default returns an Index of the builtin profile types.
func Default() (*Index, error) {
	sources, err := Builtin()
	if err != nil {
		return nil, err
	}
	return NewIndex(sources...)
}

// NewIndex compiles the given sources. A type registered twice is an error.
func NewIndex(sources ...Source) (*Index, error) {
	idx := &Index{defs: make(map[string]*Definition, len(sources))}

	for _, src := range sources {
		if src.Type == "" {
			return nil, fmt.Errorf("schema source without a type")
		}
		if _, dup := idx.defs[src.Type]; dup {
			return nil, fmt.Errorf("profile type %q registered twice", src.Type)
		}

		def, err := compileDefinition(src)
		if err != nil {
			return nil, err
		}
		idx.defs[src.Type] = def
		idx.types = append(idx.types, src.Type)
	}

	layer, err := compile("strata.schema.json", jsontree.FromObject(idx.ConfigSchema()))
	if err != nil {
		return nil, fmt.Errorf("compiling config schema: %w", err)
	}
	idx.layer = layer

	return idx, nil
}

func compileDefinition(src Source) (*Definition, error) {
	raw, err := jsontree.ParseObject(src.Schema)
	if err != nil {
		return nil, fmt.Errorf("parsing schema for type %q: %w", src.Type, err)
	}

	compiled, err := compile("profiles/"+src.Type+".json", jsontree.FromObject(raw))
	if err != nil {
		return nil, fmt.Errorf("compiling schema for type %q: %w", src.Type, err)
	}

	def := &Definition{
		Type:     src.Type,
		raw:      raw,
		compiled: compiled,
	}
	def.Title, _ = raw.GetString("title")
	def.Description, _ = raw.GetString("description")

	props, _ := raw.GetObject("properties")
	props.Range(func(name string, v jsontree.Value) bool {
		obj, ok := v.AsObject()
		if !ok {
			return true
		}
		p := Property{Name: name}
		p.Type, _ = obj.GetString("type")
		p.Description, _ = obj.GetString("description")
		if secure, ok := obj.Get("secure"); ok {
			p.Secure, _ = secure.AsBool()
		}
		if dflt, ok := obj.Get("default"); ok {
			p.Default = dflt.Clone()
			p.HasDefault = true
		}
		def.Properties = append(def.Properties, p)
		return true
	})

	return def, nil
}

func compile(name string, doc jsontree.Value) (*jsonschema.Schema, error) {
	data, err := doc.MarshalJSON()
	if err != nil {
		return nil, err
	}

	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(BaseURL+name, parsed); err != nil {
		return nil, err
	}
	return c.Compile(BaseURL + name)
}

// Types returns the registered profile types in registration order.
func (i *Index) Types() []string {
	out := make([]string, len(i.types))
	copy(out, i.types)
	return out
}

// Lookup returns the definition of a profile type.
func (i *Index) Lookup(profileType string) (*Definition, bool) {
	if i == nil {
		return nil, false
	}
	def, ok := i.defs[profileType]
	return def, ok
}

// IsSecure reports whether the schema of profileType marks prop as secure.
func (i *Index) IsSecure(profileType, prop string) bool {
	def, ok := i.Lookup(profileType)
	if !ok {
		return false
	}
	p, ok := def.Property(prop)
	return ok && p.Secure
}

// SecureProperties lists the secure property names of a type.
func (i *Index) SecureProperties(profileType string) []string {
	def, ok := i.Lookup(profileType)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range def.Properties {
		if p.Secure {
			out = append(out, p.Name)
		}
	}
	return out
}

// Defaults returns the declared default values of a type's properties in
// schema order. Unknown types have none.
func (i *Index) Defaults(profileType string) *jsontree.Object {
	out := jsontree.NewObject()
	def, ok := i.Lookup(profileType)
	if !ok {
		return out
	}
	for _, p := range def.Properties {
		if p.HasDefault {
			out.Set(p.Name, p.Default.Clone())
		}
	}
	return out
}

// ValidationError reports properties that do not satisfy their schema.
type ValidationError struct {
	Subject string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Subject, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks props against the schema of profileType. Types without a
// registered schema are not checked.
func (i *Index) Validate(profileType string, props *jsontree.Object) error {
	def, ok := i.Lookup(profileType)
	if !ok {
		return nil
	}
	if err := def.compiled.Validate(props.Map()); err != nil {
		return &ValidationError{Subject: fmt.Sprintf("properties of type %q", profileType), Err: err}
	}
	return nil
}

// ValidateLayer checks the shape of a whole layer document against the
// generated config schema.
func (i *Index) ValidateLayer(doc *jsontree.Object) error {
	if err := i.layer.Validate(doc.Map()); err != nil {
		return &ValidationError{Subject: "layer", Err: err}
	}
	return nil
}

// Coerce converts a raw command-line value into the JSON type the schema
// declares for prop. Values of unknown properties are guessed: true/false
// become booleans and numeric text becomes a number.
func (i *Index) Coerce(profileType, prop, raw string) jsontree.Value {
	kind := ""
	if def, ok := i.Lookup(profileType); ok {
		if p, ok := def.Property(prop); ok {
			kind = p.Type
		}
	}

	switch kind {
	case "string":
		return jsontree.String(raw)
	case "boolean":
		if b, err := strconv.ParseBool(raw); err == nil {
			return jsontree.Bool(b)
		}
		return jsontree.String(raw)
	case "number", "integer":
		if isNumber(raw) {
			return jsontree.Number(jsonNumber(raw))
		}
		return jsontree.String(raw)
	}

	switch raw {
	case "true":
		return jsontree.Bool(true)
	case "false":
		return jsontree.Bool(false)
	}
	if isNumber(raw) {
		return jsontree.Number(jsonNumber(raw))
	}
	return jsontree.String(raw)
}

func isNumber(raw string) bool {
	if raw == "" || strings.ContainsAny(raw, " \t\n") {
		return false
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return false
	}
	// reject forms JSON cannot carry
	v, err := jsontree.Parse([]byte(raw))
	return err == nil && v.Kind() == jsontree.KindNumber
}
