package types

import (
	"fmt"
	"slices"
)

// IDField is the key every stored record carries.
const IDField = "id"

// Record is a flat mapping of field name to scalar or opaque value.
// Relationships are never embedded; only foreign key fields are stored.
type Record map[string]any

// Query is a set of field/value pairs compared by stringified equality.
type Query map[string]any

// ID returns the record's id as a string, or "" when it has none.
func (r Record) ID() string {
	v, ok := r[IDField]
	if !ok || v == nil {
		return ""
	}
	return Stringify(v)
}

// Clone returns a copy of the record. Nested maps and slices are copied
// too, so no mutation of the copy reaches the original.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies the container types JSON and YAML decoding
// produce. Other values are returned as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = CloneValue(x)
		}
		return out
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = CloneValue(x)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

// Matches reports whether every key in q is present in r with an equal
// stringified value.
func (r Record) Matches(q Query) bool {
	for k, want := range q {
		got, ok := r[k]
		if !ok {
			return false
		}
		if Stringify(got) != Stringify(want) {
			return false
		}
	}
	return true
}

// Stringify renders a field value for equality comparison. nil renders as
// "null" so that a cleared foreign key matches a nil query value.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
