package orm

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Model is a handle on one record. A handle is New until its first save,
// Saved afterwards, and Destroyed for good once Destroy succeeds.
//
// Attributes live in memory until Save or Update writes them. Association
// accessors read through the store, except for parents and children that
// were assigned but not yet saved.
type Model struct {
	schema *Schema
	entry  *modelEntry
	serial uint64

	attrs     types.Record
	persisted bool
	destroyed bool

	// parents and children hold assignments that Save has not applied.
	parents  map[string]*Model
	children map[string][]*Model
}

func (s *Schema) newModel(e *modelEntry, attrs types.Record, persisted bool) *Model {
	if attrs == nil {
		attrs = types.Record{}
	}
	m := &Model{
		schema:    s,
		entry:     e,
		serial:    s.nextSerial(),
		attrs:     attrs,
		persisted: persisted,
		parents:   map[string]*Model{},
		children:  map[string][]*Model{},
	}
	for _, fk := range e.foreignKeys {
		if _, ok := m.attrs[fk]; !ok {
			m.attrs[fk] = nil
		}
	}
	return m
}

// ID returns the record id, or "" before the first save.
func (m *Model) ID() string { return m.attrs.ID() }

// ModelName returns the dasherized model name.
func (m *Model) ModelName() string { return m.entry.name }

// Schema returns the schema the handle belongs to.
func (m *Model) Schema() *Schema { return m.schema }

// Attrs returns a copy of the attributes, key fields included.
func (m *Model) Attrs() types.Record { return m.attrs.Clone() }

// Get returns one attribute.
func (m *Model) Get(key string) (any, bool) {
	v, ok := m.attrs[key]
	return v, ok
}

// ForeignKeys returns the key fields stored on this model's records.
func (m *Model) ForeignKeys() []string {
	return append([]string(nil), m.entry.foreignKeys...)
}

// Associations returns the model's associations keyed by property name.
func (m *Model) Associations() map[string]*Association {
	out := make(map[string]*Association, len(m.entry.byKey))
	for k, a := range m.entry.byKey {
		out[k] = a
	}
	return out
}

// Set changes one attribute in memory. Writing a belongs-to key field
// drops any unsaved parent assigned through that association.
// Association keys must go through SetParent or SetChildren.
func (m *Model) Set(key string, value any) error {
	if m.destroyed {
		return fmt.Errorf("%w: %s", types.ErrDestroyed, m)
	}
	if a, ok := m.entry.byKey[key]; ok {
		return fmt.Errorf("%w: %s is an association; use SetParent or SetChildren", types.ErrWrongKind, a)
	}
	if key == types.IDField && m.persisted {
		return fmt.Errorf("%w: cannot change the id of %s", types.ErrInvalidID, m)
	}
	m.attrs[key] = value
	if a, ok := m.entry.belongsTo[key]; ok {
		delete(m.parents, a.Key)
	}
	return nil
}

// Update sets one attribute and writes it to the store at once. Values
// for association keys are routed through SetParent or SetChildren and
// then saved.
func (m *Model) Update(key string, value any) error {
	return m.UpdateAttrs(map[string]any{key: value})
}

// UpdateAttrs is Update for several attributes.
func (m *Model) UpdateAttrs(attrs map[string]any) error {
	if m.destroyed {
		return fmt.Errorf("%w: %s", types.ErrDestroyed, m)
	}
	if !m.persisted {
		return fmt.Errorf("%w: %s", types.ErrUnsaved, m)
	}
	if _, ok := attrs[types.IDField]; ok {
		return fmt.Errorf("%w: cannot change the id of %s", types.ErrInvalidID, m)
	}

	changed := types.Record{}
	viaAssociation := false
	for _, key := range sortedKeys(attrs) {
		value := attrs[key]
		if a, ok := m.entry.byKey[key]; ok {
			if err := m.assign(a, value); err != nil {
				return err
			}
			viaAssociation = true
			continue
		}
		if err := m.Set(key, value); err != nil {
			return err
		}
		changed[key] = value
	}

	if viaAssociation {
		return m.Save()
	}
	tbl, err := m.schema.tableFor(m.entry)
	if err != nil {
		return err
	}
	if _, err := tbl.UpdateByID(m.ID(), changed); err != nil {
		return fmt.Errorf("updating %s: %w", m, err)
	}
	return nil
}

// assign routes a *Model, []*Model or ResultSet value to the matching
// association setter.
func (m *Model) assign(a *Association, value any) error {
	switch a.Kind {
	case KindBelongsTo:
		switch v := value.(type) {
		case nil:
			return m.SetParent(a.Key, nil)
		case *Model:
			return m.SetParent(a.Key, v)
		}
	case KindHasMany:
		switch v := value.(type) {
		case nil:
			return m.SetChildren(a.Key)
		case []*Model:
			return m.SetChildren(a.Key, v...)
		case ResultSet:
			return m.SetChildren(a.Key, v.Models()...)
		}
	}
	return fmt.Errorf("%w: %s cannot take a %T", types.ErrWrongType, a, value)
}

// Save inserts or updates the record, saving unsaved parents first and
// assigned children afterwards. Cycles between unsaved handles are
// broken by patching keys once the missing ids exist.
func (m *Model) Save() error {
	return m.save(newSaveGuard())
}

// Destroy clears every key that points at this record and then removes
// it. Destroying a handle that was never saved only marks it destroyed.
func (m *Model) Destroy() error {
	if m.destroyed {
		return nil
	}
	if !m.persisted {
		m.markDestroyed()
		return nil
	}
	if err := m.disassociateDependents(); err != nil {
		return err
	}
	tbl, err := m.schema.tableFor(m.entry)
	if err != nil {
		return err
	}
	if err := tbl.RemoveByID(m.ID()); err != nil && !errors.Is(err, types.ErrNotFound) {
		return fmt.Errorf("destroying %s: %w", m, err)
	}
	m.markDestroyed()
	m.schema.logger.Debug("model destroyed", "model", m.entry.name, "id", m.ID())
	return nil
}

func (m *Model) markDestroyed() {
	m.dropFromTempParents()
	m.destroyed = true
	m.parents = map[string]*Model{}
	m.children = map[string][]*Model{}
}

// Reload replaces the attributes with the stored record and discards
// unsaved association assignments.
func (m *Model) Reload() error {
	if m.destroyed {
		return fmt.Errorf("%w: %s", types.ErrDestroyed, m)
	}
	if !m.persisted {
		return fmt.Errorf("%w: %s", types.ErrUnsaved, m)
	}
	tbl, err := m.schema.tableFor(m.entry)
	if err != nil {
		return err
	}
	rec := tbl.Find(m.ID())
	if rec == nil {
		return fmt.Errorf("%w: %s %s", types.ErrNotFound, m.entry.name, m.ID())
	}
	m.attrs = rec
	m.parents = map[string]*Model{}
	m.children = map[string][]*Model{}
	return nil
}

// IsNew reports whether the handle has no stored record: it was never
// saved or it has been destroyed. IsNew and IsSaved are complements;
// IsDestroyed tells the two unsaved cases apart.
func (m *Model) IsNew() bool { return !m.persisted || m.destroyed }

// IsSaved reports whether the handle has a stored record.
func (m *Model) IsSaved() bool { return m.persisted && !m.destroyed }

// IsDestroyed reports whether Destroy has run.
func (m *Model) IsDestroyed() bool { return m.destroyed }

// Equals reports whether both handles denote the same record. Unsaved
// handles are only equal to themselves.
func (m *Model) Equals(o *Model) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m == o {
		return true
	}
	if !m.IsSaved() || !o.IsSaved() {
		return false
	}
	return m.entry.name == o.entry.name && m.ID() == o.ID()
}

// String returns "model:<type>:<id>", with "null" for a missing id.
func (m *Model) String() string {
	id := m.ID()
	if id == "" {
		id = "null"
	}
	return "model:" + m.entry.name + ":" + id
}

// ToJSON returns a copy of the attributes for serialization.
func (m *Model) ToJSON() types.Record { return m.attrs.Clone() }

// MarshalJSON encodes the attributes.
func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(m.attrs))
}

func (m *Model) table() (types.Table, error) {
	return m.schema.tableFor(m.entry)
}

// persist writes the attributes, inserting on the first save.
func (m *Model) persist() error {
	tbl, err := m.table()
	if err != nil {
		return err
	}
	if !m.persisted {
		rec, err := tbl.Insert(m.attrs)
		if err != nil {
			return fmt.Errorf("saving %s: %w", m, err)
		}
		m.attrs = rec
		m.persisted = true
		return nil
	}
	rec, err := tbl.UpdateByID(m.ID(), m.attrs)
	if err != nil {
		return fmt.Errorf("saving %s: %w", m, err)
	}
	m.attrs = rec
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
