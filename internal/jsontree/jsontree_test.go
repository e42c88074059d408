package jsontree

import (
	"encoding/json"
	"testing"
)

func TestParse_PreservesKeyOrder(t *testing.T) {
	obj, err := ParseObject([]byte(`{"zeta": 1, "alpha": {"b": true, "a": null}, "mid": "x"}`))
	if err != nil {
		t.Fatalf("ParseObject() error = %v", err)
	}

	keys := obj.Keys()
	want := []string{"zeta", "alpha", "mid"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	nested, ok := obj.GetObject("alpha")
	if !ok {
		t.Fatal("expected alpha to be an object")
	}
	if got := nested.Keys(); got[0] != "b" || got[1] != "a" {
		t.Errorf("nested Keys() = %v, want [b a]", got)
	}
}

func TestParse_DuplicateKeyKeepsFirstPosition(t *testing.T) {
	obj, err := ParseObject([]byte(`{"a": 1, "b": 2, "a": 3}`))
	if err != nil {
		t.Fatalf("ParseObject() error = %v", err)
	}

	if got := obj.Keys(); len(got) != 2 || got[0] != "a" {
		t.Errorf("Keys() = %v, want [a b]", got)
	}
	v, _ := obj.Get("a")
	if n, _ := v.AsNumber(); n != "3" {
		t.Errorf("a = %s, want 3", n)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"truncated", `{"a": 1`},
		{"trailing data", `{"a": 1} {"b": 2}`},
		{"bad literal", `{"a": tru}`},
		{"missing colon", `{"a" 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.input)); err == nil {
				t.Errorf("Parse(%q) expected error, got nil", tt.input)
			}
		})
	}
}

func TestParseObject_RejectsNonObject(t *testing.T) {
	if _, err := ParseObject([]byte(`[1, 2]`)); err == nil {
		t.Fatal("expected error for array document")
	}
}

func TestParseObject_EmptyInput(t *testing.T) {
	obj, err := ParseObject([]byte("  \n"))
	if err != nil {
		t.Fatalf("ParseObject() error = %v", err)
	}
	if obj.Len() != 0 {
		t.Errorf("Len() = %d, want 0", obj.Len())
	}
}

func TestEncode_RoundTripIsStable(t *testing.T) {
	input := `{
  "$schema": "./strata.schema.json",
  "profiles": {
    "zosmf": {
      "type": "zosmf",
      "properties": {
        "port": 443,
        "ratio": 1.50,
        "tags": [],
        "query": "a<b&c>d"
      }
    }
  },
  "defaults": {},
  "autoStore": true
}
`
	v, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	out, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if string(out) != input {
		t.Errorf("Encode() =\n%s\nwant\n%s", out, input)
	}
}

func TestMarshalJSON_Compact(t *testing.T) {
	obj := NewObject()
	obj.Set("b", Int(1))
	obj.Set("a", Strings([]string{"x", "y"}))
	obj.Set("c", Null())

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	want := `{"b":1,"a":["x","y"],"c":null}`
	if string(data) != want {
		t.Errorf("json.Marshal() = %s, want %s", data, want)
	}
}

func TestObject_SetKeepsPosition(t *testing.T) {
	obj := NewObject()
	obj.Set("a", Int(1))
	obj.Set("b", Int(2))
	obj.Set("a", Int(3))

	if got := obj.Keys(); got[0] != "a" || got[1] != "b" {
		t.Errorf("Keys() = %v, want [a b]", got)
	}
	if !obj.Delete("a") {
		t.Error("Delete(a) = false, want true")
	}
	if obj.Delete("a") {
		t.Error("second Delete(a) = true, want false")
	}
	if got := obj.Keys(); len(got) != 1 || got[0] != "b" {
		t.Errorf("Keys() after delete = %v, want [b]", got)
	}
}

func TestPaths(t *testing.T) {
	root := NewObject()
	SetPath(root, "profiles.lpar1.properties.host", String("example.com"))
	SetPath(root, "profiles.lpar1.properties.port", Int(443))

	v, ok := GetPath(root, "profiles.lpar1.properties.host")
	if !ok {
		t.Fatal("GetPath() not found")
	}
	if s, _ := v.AsString(); s != "example.com" {
		t.Errorf("host = %q, want example.com", s)
	}

	if _, ok := GetPath(root, "profiles.lpar1.properties.host.extra"); ok {
		t.Error("GetPath() through a string should fail")
	}

	// a scalar in the middle of the path is replaced by an object
	SetPath(root, "profiles.lpar1.properties.host.extra", Bool(true))
	if v, ok := GetPath(root, "profiles.lpar1.properties.host.extra"); !ok || v.Kind() != KindBool {
		t.Errorf("GetPath() after replace = %v, %v", v, ok)
	}

	if !DeletePath(root, "profiles.lpar1.properties.port") {
		t.Error("DeletePath() = false, want true")
	}
	if DeletePath(root, "profiles.missing.properties.port") {
		t.Error("DeletePath() on missing path = true, want false")
	}
}

func TestEqualIgnoresKeyOrder(t *testing.T) {
	a, _ := Parse([]byte(`{"x": 1, "y": [true, "s"]}`))
	b, _ := Parse([]byte(`{"y": [true, "s"], "x": 1}`))
	c, _ := Parse([]byte(`{"y": [true, "s"], "x": 2}`))

	if !Equal(a, b) {
		t.Error("Equal(a, b) = false, want true")
	}
	if Equal(a, c) {
		t.Error("Equal(a, c) = true, want false")
	}
}

func TestClone_IsDeep(t *testing.T) {
	orig, _ := Parse([]byte(`{"p": {"q": 1}}`))
	cp := orig.Clone()

	obj, _ := cp.AsObject()
	SetPath(obj, "p.q", Int(2))

	origObj, _ := orig.AsObject()
	v, _ := GetPath(origObj, "p.q")
	if n, _ := v.AsNumber(); n != "1" {
		t.Errorf("original mutated: p.q = %s", n)
	}
}

func TestFromInterface(t *testing.T) {
	v, err := FromInterface(map[string]any{
		"b":    []any{"x", 2, 1.5},
		"a":    true,
		"none": nil,
	})
	if err != nil {
		t.Fatalf("FromInterface() error = %v", err)
	}

	out, _ := v.MarshalJSON()
	want := `{"a":true,"b":["x",2,1.5],"none":null}`
	if string(out) != want {
		t.Errorf("MarshalJSON() = %s, want %s", out, want)
	}

	if _, err := FromInterface(struct{}{}); err == nil {
		t.Error("expected error for unsupported type")
	}
}
