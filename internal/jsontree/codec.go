package jsontree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Parse decodes a single JSON document, preserving object key order.
// Duplicate keys keep their first position and their last value.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			return Value{}, fmt.Errorf("unexpected data after top-level value")
		}
		return Value{}, err
	}

	return v, nil
}

// ParseObject decodes a document whose top level must be an object.
// Empty or whitespace-only input yields an empty object.
func ParseObject(data []byte) (*Object, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewObject(), nil
	}

	v, err := Parse(data)
	if err != nil {
		return nil, err
	}

	obj, ok := v.AsObject()
	if !ok {
		return nil, fmt.Errorf("top-level value is %s, expected object", v.Kind())
	}
	return obj, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func decodeObject(dec *json.Decoder) (Value, error) {
	obj := NewObject()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected object key, got %v", tok)
		}

		v, err := decodeValue(dec)
		if err != nil {
			return Value{}, fmt.Errorf("key %q: %w", key, err)
		}
		obj.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return FromObject(obj), nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	arr := []Value{}
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return Value{}, fmt.Errorf("index %d: %w", len(arr), err)
		}
		arr = append(arr, v)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Array(arr...), nil
}

// MarshalJSON renders the value as compact JSON without HTML escaping.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v, "", ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes into v, preserving key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON renders the object as compact JSON.
func (o *Object) MarshalJSON() ([]byte, error) {
	return FromObject(o).MarshalJSON()
}

// Encode renders v with two-space indentation and a trailing newline, the
// format used for layer files.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// EncodeObject is Encode for an object.
func EncodeObject(o *Object) ([]byte, error) {
	return Encode(FromObject(o))
}

func writeValue(buf *bytes.Buffer, v Value, prefix, indent string) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		if !json.Valid([]byte(v.s)) {
			return fmt.Errorf("invalid number literal %q", v.s)
		}
		buf.WriteString(v.s)
	case KindString:
		return writeString(buf, v.s)
	case KindArray:
		if len(v.arr) == 0 {
			buf.WriteString("[]")
			return nil
		}
		inner := prefix + indent
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			newline(buf, inner, indent)
			if err := writeValue(buf, item, inner, indent); err != nil {
				return err
			}
		}
		newline(buf, prefix, indent)
		buf.WriteByte(']')
	case KindObject:
		if v.obj.Len() == 0 {
			buf.WriteString("{}")
			return nil
		}
		inner := prefix + indent
		buf.WriteByte('{')
		for i, k := range v.obj.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			newline(buf, inner, indent)
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if indent != "" {
				buf.WriteByte(' ')
			}
			if err := writeValue(buf, v.obj.vals[k], inner, indent); err != nil {
				return err
			}
		}
		newline(buf, prefix, indent)
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown kind %d", v.kind)
	}
	return nil
}

func newline(buf *bytes.Buffer, prefix, indent string) {
	if indent == "" {
		return
	}
	buf.WriteByte('\n')
	buf.WriteString(prefix)
}

func writeString(buf *bytes.Buffer, s string) error {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.WriteString(strings.TrimSuffix(sb.String(), "\n"))
	return nil
}
