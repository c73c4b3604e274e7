package fieldpath

import "strings"

// MaxDepth bounds the number of segments a path may traverse.
const MaxDepth = 16

// Resolve follows a dot-delimited path from root. Empty paths, empty segments,
// paths deeper than MaxDepth and any missing step yield Absent.
func Resolve(root Value, path string) Value {
	if path == "" {
		return Absent
	}
	segments := strings.Split(path, ".")
	if len(segments) > MaxDepth {
		return Absent
	}
	current := root
	for _, segment := range segments {
		if segment == "" {
			return Absent
		}
		current = current.Field(segment)
		if current.IsAbsent() {
			return Absent
		}
	}
	return current
}

// ResolveText resolves path and returns its string form when present.
func ResolveText(root Value, path string) (string, bool) {
	v := Resolve(root, path)
	if !v.Present() {
		return "", false
	}
	return v.Text()
}
