package orm

import (
	"fmt"
	"slices"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

func (m *Model) association(key string, kind Kind) (*Association, error) {
	a, ok := m.entry.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no association %q", types.ErrInvalidAssociation, m.entry.name, key)
	}
	if a.Kind != kind {
		return nil, fmt.Errorf("%w: %s is not %s", types.ErrWrongKind, a, kind)
	}
	return a, nil
}

// Parent returns the record a belongs-to association points at, or nil
// when the key is empty or dangling.
func (m *Model) Parent(key string) (*Model, error) {
	a, err := m.association(key, KindBelongsTo)
	if err != nil {
		return nil, err
	}
	if p, ok := m.parents[key]; ok {
		return p, nil
	}
	v := m.attrs[a.ForeignKey]
	if v == nil {
		return nil, nil
	}

	typ, id := a.ModelName, types.Stringify(v)
	if a.Polymorphic {
		ref, ok := types.AsRef(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s holds %v, not a reference", types.ErrWrongType, a, v)
		}
		typ, id = ref.Type, ref.ID
	}
	e, err := m.schema.lookup(typ)
	if err != nil {
		return nil, err
	}
	tbl, err := m.schema.tableFor(e)
	if err != nil {
		return nil, err
	}
	rec := tbl.Find(id)
	if rec == nil {
		return nil, nil
	}
	return m.schema.newModel(e, rec, true), nil
}

// SetParent assigns a belongs-to association in memory. A saved parent's
// id is copied at once; an unsaved one is saved by the owner's next Save.
// A nil parent clears the key.
func (m *Model) SetParent(key string, p *Model) error {
	if m.destroyed {
		return fmt.Errorf("%w: %s", types.ErrDestroyed, m)
	}
	a, err := m.association(key, KindBelongsTo)
	if err != nil {
		return err
	}
	if p != nil && !a.Polymorphic && p.entry.name != a.ModelName {
		return fmt.Errorf("%w: %s wants %s, got %s", types.ErrWrongType, a, a.ModelName, p.entry.name)
	}
	if p != nil && p.destroyed {
		return fmt.Errorf("%w: %s", types.ErrDestroyed, p)
	}
	inv := m.schema.bookkeepingInverse(a)

	if old, ok := m.parents[key]; ok && inv != nil {
		old.forgetTemp(inv, m)
	}
	if p == nil {
		delete(m.parents, key)
		m.attrs[a.ForeignKey] = nil
		return nil
	}

	m.parents[key] = p
	m.attrs[a.ForeignKey] = nil
	if p.persisted {
		m.attrs[a.ForeignKey] = a.valueFor(p)
	}
	if inv != nil {
		p.rememberTemp(inv, m)
	}
	return nil
}

// forgetTemp removes child from this handle's unsaved state for inv.
func (m *Model) forgetTemp(inv *Association, child *Model) {
	switch inv.Kind {
	case KindBelongsTo:
		if m.parents[inv.Key] == child {
			delete(m.parents, inv.Key)
		}
	case KindHasMany:
		if kids, ok := m.children[inv.Key]; ok {
			m.children[inv.Key] = slices.DeleteFunc(slices.Clone(kids), func(k *Model) bool { return k == child })
		}
	}
}

// rememberTemp mirrors an assignment onto this handle's unsaved state.
// Has-many lists are only touched when already materialized.
func (m *Model) rememberTemp(inv *Association, other *Model) {
	switch inv.Kind {
	case KindBelongsTo:
		if prev, ok := m.parents[inv.Key]; ok && prev != other {
			if back, err := m.schema.InverseFor(inv); err == nil && back != nil {
				prev.forgetTemp(back, m)
			}
		}
		m.parents[inv.Key] = other
	case KindHasMany:
		if kids, ok := m.children[inv.Key]; ok && !slices.Contains(kids, other) {
			m.children[inv.Key] = append(slices.Clone(kids), other)
		}
	}
}

// NewParent builds an unsaved parent from attrs and assigns it.
func (m *Model) NewParent(key string, attrs map[string]any) (*Model, error) {
	a, err := m.association(key, KindBelongsTo)
	if err != nil {
		return nil, err
	}
	if a.Polymorphic {
		return nil, fmt.Errorf("%w: %s is polymorphic; use NewParentOfType", types.ErrWrongType, a)
	}
	return m.NewParentOfType(key, a.ModelName, attrs)
}

// NewParentOfType is NewParent naming the parent's model, as polymorphic
// associations require.
func (m *Model) NewParentOfType(key, modelName string, attrs map[string]any) (*Model, error) {
	p, err := m.schema.New(modelName, attrs)
	if err != nil {
		return nil, err
	}
	if err := m.SetParent(key, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateParent is NewParent followed by saving both records.
func (m *Model) CreateParent(key string, attrs map[string]any) (*Model, error) {
	p, err := m.NewParent(key, attrs)
	if err != nil {
		return nil, err
	}
	if err := m.Save(); err != nil {
		return nil, err
	}
	return p, nil
}

// Children returns the records a has-many association holds. Assigned
// but unsaved children are returned as assigned; otherwise the store is
// queried on every call.
func (m *Model) Children(key string) (ResultSet, error) {
	a, err := m.association(key, KindHasMany)
	if err != nil {
		return nil, err
	}
	if kids, ok := m.children[key]; ok {
		return m.childSet(a, kids)
	}
	if !m.persisted {
		return m.childSet(a, nil)
	}
	return m.lookupChildren(a)
}

func (m *Model) childSet(a *Association, kids []*Model) (ResultSet, error) {
	if a.Polymorphic {
		return NewPolymorphicCollection(kids...), nil
	}
	return NewCollection(a.ModelName, kids...)
}

func (m *Model) lookupChildren(a *Association) (ResultSet, error) {
	fk, _, err := m.schema.childKey(a)
	if err != nil {
		return nil, fmt.Errorf("reading %s.%s: %w", m, a.Key, err)
	}
	holders, err := m.schema.childHolders(a, fk)
	if err != nil {
		return nil, err
	}
	var kids []*Model
	for _, h := range holders {
		tbl, err := m.schema.tableFor(h)
		if err != nil {
			return nil, err
		}
		poly := h.isPolymorphicKey(fk)
		for _, rec := range tbl.WhereFunc(func(r types.Record) bool { return refersTo(r[fk], m, poly) }) {
			kids = append(kids, m.schema.newModel(h, rec, true))
		}
	}
	return m.childSet(a, kids)
}

// ChildIDs returns the ids of Children(key).
func (m *Model) ChildIDs(key string) ([]string, error) {
	rs, err := m.Children(key)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, rs.Len())
	for _, c := range rs.Models() {
		ids = append(ids, c.ID())
	}
	return ids, nil
}

// SetChildren replaces a has-many association in memory. The next Save
// unlinks the old children and links and saves the new ones.
func (m *Model) SetChildren(key string, kids ...*Model) error {
	if m.destroyed {
		return fmt.Errorf("%w: %s", types.ErrDestroyed, m)
	}
	a, err := m.association(key, KindHasMany)
	if err != nil {
		return err
	}
	for _, k := range kids {
		if k == nil {
			return fmt.Errorf("%w: nil child for %s", types.ErrWrongType, a)
		}
		if !a.Polymorphic && k.entry.name != a.ModelName {
			return fmt.Errorf("%w: %s wants %s, got %s", types.ErrWrongType, a, a.ModelName, k.entry.name)
		}
		if k.destroyed {
			return fmt.Errorf("%w: %s", types.ErrDestroyed, k)
		}
	}
	_, inv, err := m.schema.childKey(a)
	if err != nil {
		return err
	}

	if inv != nil {
		for _, old := range m.children[key] {
			if !slices.Contains(kids, old) {
				old.forgetTemp(inv, m)
			}
		}
	}
	m.children[key] = slices.Clone(kids)
	if inv != nil {
		for _, k := range kids {
			if prev, ok := k.parents[inv.Key]; ok && prev != m {
				prev.forgetTemp(a, k)
			}
			k.parents[inv.Key] = m
		}
	}
	return nil
}

// AddChild appends one child to the association in memory.
func (m *Model) AddChild(key string, child *Model) error {
	rs, err := m.Children(key)
	if err != nil {
		return err
	}
	kids := rs.Models()
	if slices.Contains(kids, child) {
		return nil
	}
	return m.SetChildren(key, append(kids, child)...)
}

// NewChild builds an unsaved child from attrs and adds it.
func (m *Model) NewChild(key string, attrs map[string]any) (*Model, error) {
	a, err := m.association(key, KindHasMany)
	if err != nil {
		return nil, err
	}
	if a.Polymorphic {
		return nil, fmt.Errorf("%w: %s is polymorphic; use NewChildOfType", types.ErrWrongType, a)
	}
	return m.NewChildOfType(key, a.ModelName, attrs)
}

// NewChildOfType is NewChild naming the child's model.
func (m *Model) NewChildOfType(key, modelName string, attrs map[string]any) (*Model, error) {
	c, err := m.schema.New(modelName, attrs)
	if err != nil {
		return nil, err
	}
	if err := m.AddChild(key, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateChild is NewChild followed by saving the owner and its children.
func (m *Model) CreateChild(key string, attrs map[string]any) (*Model, error) {
	c, err := m.NewChild(key, attrs)
	if err != nil {
		return nil, err
	}
	if err := m.Save(); err != nil {
		return nil, err
	}
	return c, nil
}
