// Package jsontree is a small ordered JSON document model used for layer
// files. Objects keep their key order so files round-trip without churn.
package jsontree

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a JSON value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	s    string
	arr  []Value
	obj  *Object
}

// Null returns the JSON null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a numeric literal. The literal is kept verbatim.
func Number(n json.Number) Value { return Value{kind: KindNumber, s: string(n)} }

// Int wraps an integer.
func Int(i int64) Value { return Number(json.Number(fmt.Sprintf("%d", i))) }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array wraps a list of values.
func Array(items ...Value) Value {
	return Value{kind: KindArray, arr: items}
}

// Strings builds an array of string values.
func Strings(items []string) Value {
	arr := make([]Value, len(items))
	for i, s := range items {
		arr[i] = String(s)
	}
	return Array(arr...)
}

// FromObject wraps an object. A nil object becomes an empty one.
func FromObject(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

func (v Value) AsNumber() (json.Number, bool) {
	return json.Number(v.s), v.kind == KindNumber
}

func (v Value) AsArray() ([]Value, bool) {
	return v.arr, v.kind == KindArray
}

func (v Value) AsObject() (*Object, bool) {
	return v.obj, v.kind == KindObject
}

// StringSlice returns the string members of an array value, skipping
// anything that is not a string. Non-arrays yield nil.
func (v Value) StringSlice() []string {
	if v.kind != KindArray {
		return nil
	}
	out := make([]string, 0, len(v.arr))
	for _, item := range v.arr {
		if s, ok := item.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}

// Text renders the value for display: strings as-is, everything else as
// compact JSON.
func (v Value) Text() string {
	if v.kind == KindString {
		return v.s
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(data)
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		arr := make([]Value, len(v.arr))
		for i, item := range v.arr {
			arr[i] = item.Clone()
		}
		return Value{kind: KindArray, arr: arr}
	case KindObject:
		return Value{kind: KindObject, obj: v.obj.Clone()}
	default:
		return v
	}
}

// Equal reports whether a and b are structurally equal. Object key order is
// ignored; numbers compare by literal text.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber, KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		for _, k := range a.obj.keys {
			bv, ok := b.obj.Get(k)
			if !ok || !Equal(a.obj.vals[k], bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts the value into plain Go values: nil, bool,
// json.Number, string, []any and map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return json.Number(v.s)
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		return v.obj.Map()
	default:
		return nil
	}
}

// FromInterface converts plain Go values into a Value. Map keys are sorted
// since Go maps carry no order.
func FromInterface(in any) (Value, error) {
	switch x := in.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case *Object:
		return FromObject(x), nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case json.Number:
		return Number(x), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Number(json.Number(fmt.Sprintf("%d", x))), nil
	case uint64:
		return Number(json.Number(fmt.Sprintf("%d", x))), nil
	case float32:
		return floatValue(float64(x))
	case float64:
		return floatValue(x)
	case []string:
		return Strings(x), nil
	case []any:
		arr := make([]Value, len(x))
		for i, item := range x {
			v, err := FromInterface(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			arr[i] = v
		}
		return Array(arr...), nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			v, err := FromInterface(x[k])
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			obj.Set(k, v)
		}
		return FromObject(obj), nil
	case map[string]string:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			obj.Set(k, String(x[k]))
		}
		return FromObject(obj), nil
	default:
		return Value{}, fmt.Errorf("unsupported type %T", in)
	}
}

func floatValue(f float64) (Value, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return Value{}, err
	}
	return Number(json.Number(data)), nil
}
