// Package fieldpath resolves dotted field paths such as "actors.0.id" against a
// small structured value model. Lookups never fail: a path that cannot be
// followed yields the Absent value, and callers decide what absence means.
package fieldpath

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is an immutable scalar, sequence or mapping. The zero Value is Absent.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	list []Value
	m    map[string]Value
}

// Absent marks a path that did not resolve.
var Absent = Value{}

func Null() Value               { return Value{kind: KindNull} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Number(n float64) Value    { return Value{kind: KindNumber, n: n} }
func String(s string) Value     { return Value{kind: KindString, s: s} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Map builds a mapping value. The provided map is not copied.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether the value came from an unresolvable path.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Present reports whether the value carries data. Null counts as missing.
func (v Value) Present() bool { return v.kind != KindAbsent && v.kind != KindNull }

// Len returns the element count of lists and maps, zero otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.m)
	default:
		return 0
	}
}

// Field returns the named entry of a map or the indexed element of a list.
func (v Value) Field(segment string) Value {
	switch v.kind {
	case KindMap:
		if child, ok := v.m[segment]; ok {
			return child
		}
	case KindList:
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 || idx >= len(v.list) {
			return Absent
		}
		return v.list[idx]
	}
	return Absent
}

// Text returns the canonical string form. The boolean is false when the value
// is absent or null.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindString:
		return v.s, true
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64), true
	case KindBool:
		return strconv.FormatBool(v.b), true
	case KindList, KindMap:
		raw, err := json.Marshal(v.Interface())
		if err != nil {
			return "", false
		}
		return string(raw), true
	default:
		return "", false
	}
}

func (v Value) String() string {
	s, _ := v.Text()
	return s
}

// Interface converts the value back into plain Go data.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// Keys returns the sorted keys of a map value.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FromAny converts decoded JSON-like data into a Value. Unsupported types are
// rendered through fmt so they still resolve to something printable.
func FromAny(in any) Value {
	switch x := in.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case uint:
		return Number(float64(x))
	case uint32:
		return Number(float64(x))
	case uint64:
		return Number(float64(x))
	case float32:
		return Number(float64(x))
	case float64:
		return Number(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return Number(f)
		}
		return String(x.String())
	case time.Time:
		return String(x.UTC().Format(time.RFC3339))
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = FromAny(item)
		}
		return List(items...)
	case []string:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = String(item)
		}
		return List(items...)
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, item := range x {
			m[k] = FromAny(item)
		}
		return Map(m)
	case map[string]string:
		m := make(map[string]Value, len(x))
		for k, item := range x {
			m[k] = String(item)
		}
		return Map(m)
	case fmt.Stringer:
		return String(x.String())
	default:
		return String(fmt.Sprint(x))
	}
}
