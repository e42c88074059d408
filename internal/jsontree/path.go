package jsontree

import "strings"

// SplitPath splits a dotted property path. An empty path has no segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// JoinPath joins segments into a dotted path, skipping empty ones.
func JoinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ".")
}

// GetPath walks a dotted path from root.
func GetPath(root *Object, path string) (Value, bool) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return FromObject(root), root != nil
	}

	current := root
	for i, seg := range segments {
		v, ok := current.Get(seg)
		if !ok {
			return Value{}, false
		}
		if i == len(segments)-1 {
			return v, true
		}
		current, ok = v.AsObject()
		if !ok {
			return Value{}, false
		}
	}
	return Value{}, false
}

// SetPath stores v at a dotted path, creating intermediate objects and
// replacing non-object intermediates.
func SetPath(root *Object, path string, v Value) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return
	}

	current := root
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current.GetObject(seg)
		if !ok {
			next = NewObject()
			current.Set(seg, FromObject(next))
		}
		current = next
	}
	current.Set(segments[len(segments)-1], v)
}

// DeletePath removes the value at a dotted path. Empty parents are left in
// place.
func DeletePath(root *Object, path string) bool {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return false
	}

	current := root
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current.GetObject(seg)
		if !ok {
			return false
		}
		current = next
	}
	return current.Delete(segments[len(segments)-1])
}
