package types

// Ref is a tagged reference to a record of any type. Polymorphic
// belongs-to associations store a Ref in their key field so the type and
// id can never be updated independently.
type Ref struct {
	Type string `json:"type" yaml:"type"`
	ID   string `json:"id" yaml:"id"`
}

// String renders the reference as "<type>:<id>".
func (r Ref) String() string {
	return r.Type + ":" + r.ID
}

// IsZero reports whether the reference points nowhere.
func (r Ref) IsZero() bool {
	return r.Type == "" && r.ID == ""
}

// AsRef extracts a Ref from a stored field value. Values decoded from
// fixture files arrive as maps and are converted.
func AsRef(v any) (Ref, bool) {
	switch t := v.(type) {
	case Ref:
		return t, true
	case *Ref:
		if t == nil {
			return Ref{}, false
		}
		return *t, true
	case map[string]any:
		typ, ok1 := t["type"]
		id, ok2 := t["id"]
		if !ok1 || !ok2 || typ == nil || id == nil {
			return Ref{}, false
		}
		return Ref{Type: Stringify(typ), ID: Stringify(id)}, true
	default:
		return Ref{}, false
	}
}
