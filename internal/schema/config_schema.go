package schema

import (
	"encoding/json"

	"go.dot.industries/strata/internal/jsontree"
)

// FileName is the name of the generated schema file written next to layer
// files and referenced from their $schema key.
const FileName = "strata.schema.json"

func jsonNumber(raw string) json.Number { return json.Number(raw) }

// ConfigSchema generates the JSON schema of a layer file. Profiles whose
// type is registered get their properties checked against the type schema.
func (i *Index) ConfigSchema() *jsontree.Object {
	root := jsontree.NewObject()
	root.Set("$schema", jsontree.String("https://json-schema.org/draft/2020-12/schema"))
	root.Set("$version", jsontree.String("1.0"))
	root.Set("description", jsontree.String("strata configuration"))
	root.Set("type", jsontree.String("object"))

	props := jsontree.NewObject()
	props.Set("$schema", typed("string"))
	props.Set("profiles", jsontree.FromObject(profileMap()))
	props.Set("defaults", jsontree.FromObject(i.defaultsSchema()))
	props.Set("plugins", stringArray())
	props.Set("secure", stringArray())
	props.Set("autoStore", typed("boolean"))
	root.Set("properties", jsontree.FromObject(props))

	defs := jsontree.NewObject()
	defs.Set("profile", jsontree.FromObject(i.profileSchema()))
	for _, t := range i.types {
		defs.Set("type_"+t, jsontree.FromObject(i.defs[t].raw.Clone()))
	}
	root.Set("$defs", jsontree.FromObject(defs))

	return root
}

func (i *Index) profileSchema() *jsontree.Object {
	obj := jsontree.NewObject()
	obj.Set("type", jsontree.String("object"))
	obj.Set("description", jsontree.String("Profile configuration object"))

	props := jsontree.NewObject()
	props.Set("type", typed("string"))
	props.Set("properties", typed("object"))
	props.Set("profiles", jsontree.FromObject(profileMap()))
	props.Set("secure", stringArray())
	obj.Set("properties", jsontree.FromObject(props))

	var branches []jsontree.Value
	for _, t := range i.types {
		cond := jsontree.NewObject()
		jsontree.SetPath(cond, "properties.type.const", jsontree.String(t))
		cond.Set("required", jsontree.Strings([]string{"type"}))

		then := jsontree.NewObject()
		jsontree.SetPath(then, "properties.properties.$ref", jsontree.String("#/$defs/type_"+t))

		branch := jsontree.NewObject()
		branch.Set("if", jsontree.FromObject(cond))
		branch.Set("then", jsontree.FromObject(then))
		branches = append(branches, jsontree.FromObject(branch))
	}
	if len(branches) > 0 {
		obj.Set("allOf", jsontree.Array(branches...))
	}

	return obj
}

func (i *Index) defaultsSchema() *jsontree.Object {
	obj := jsontree.NewObject()
	obj.Set("type", jsontree.String("object"))

	props := jsontree.NewObject()
	for _, t := range i.types {
		p := jsontree.NewObject()
		p.Set("type", jsontree.String("string"))
		p.Set("description", jsontree.String("Default "+t+" profile"))
		props.Set(t, jsontree.FromObject(p))
	}
	obj.Set("properties", jsontree.FromObject(props))
	obj.Set("additionalProperties", typed("string"))
	return obj
}

func profileMap() *jsontree.Object {
	ref := jsontree.NewObject()
	ref.Set("$ref", jsontree.String("#/$defs/profile"))

	obj := jsontree.NewObject()
	obj.Set("type", jsontree.String("object"))
	obj.Set("additionalProperties", jsontree.FromObject(ref))
	return obj
}

func typed(name string) jsontree.Value {
	obj := jsontree.NewObject()
	obj.Set("type", jsontree.String(name))
	return jsontree.FromObject(obj)
}

func stringArray() jsontree.Value {
	obj := jsontree.NewObject()
	obj.Set("type", jsontree.String("array"))
	obj.Set("items", typed("string"))
	return jsontree.FromObject(obj)
}
