package orm

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// MissingRecordsError reports a FindMany that found fewer records than
// ids requested. It unwraps to types.ErrNotFound.
type MissingRecordsError struct {
	Type    string
	IDs     []string
	Found   int
	Missing []string
}

func (e *MissingRecordsError) Error() string {
	return fmt.Sprintf("couldn't find all %s with ids: (%s) (found %d results, but was looking for %d)",
		e.Type, strings.Join(e.IDs, ","), e.Found, len(e.IDs))
}

func (e *MissingRecordsError) Unwrap() error { return types.ErrNotFound }

// New builds an unsaved handle. attrs may carry association keys with
// *Model, []*Model or ResultSet values; key fields default to nil.
func (s *Schema) New(modelName string, attrs map[string]any) (*Model, error) {
	e, err := s.lookup(modelName)
	if err != nil {
		return nil, err
	}
	return s.build(e, attrs)
}

func (s *Schema) build(e *modelEntry, attrs map[string]any) (*Model, error) {
	plain := types.Record{}
	assoc := map[string]any{}
	for k, v := range attrs {
		if _, ok := e.byKey[k]; ok {
			assoc[k] = v
			continue
		}
		plain[k] = v
	}
	m := s.newModel(e, plain, false)
	for _, k := range sortedKeys(assoc) {
		if err := m.assign(e.byKey[k], assoc[k]); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Create is New followed by Save.
func (s *Schema) Create(modelName string, attrs map[string]any) (*Model, error) {
	m, err := s.New(modelName, attrs)
	if err != nil {
		return nil, err
	}
	if err := m.Save(); err != nil {
		return nil, err
	}
	return m, nil
}

// All returns every record of modelName.
func (s *Schema) All(modelName string) (*Collection, error) {
	return s.collect(modelName, func(t types.Table) []types.Record { return t.All() })
}

// None returns an empty collection of modelName.
func (s *Schema) None(modelName string) (*Collection, error) {
	e, err := s.lookup(modelName)
	if err != nil {
		return nil, err
	}
	return NewCollection(e.name)
}

// Find returns the record with id, or an error wrapping types.ErrNotFound.
func (s *Schema) Find(modelName, id string) (*Model, error) {
	e, tbl, err := s.entryTable(modelName)
	if err != nil {
		return nil, err
	}
	rec := tbl.Find(id)
	if rec == nil {
		return nil, fmt.Errorf("%w: %s %s", types.ErrNotFound, e.name, id)
	}
	return s.newModel(e, rec, true), nil
}

// FindMany returns the records with ids in request order. Any missing id
// fails the whole call with a *MissingRecordsError, and so does a repeated
// id, since each record is found once.
func (s *Schema) FindMany(modelName string, ids []string) (*Collection, error) {
	e, tbl, err := s.entryTable(modelName)
	if err != nil {
		return nil, err
	}
	recs := tbl.FindMany(ids)
	if len(recs) != len(ids) {
		found := map[string]bool{}
		for _, r := range recs {
			found[r.ID()] = true
		}
		var missing []string
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, &MissingRecordsError{
			Type:    e.table,
			IDs:     append([]string(nil), ids...),
			Found:   len(recs),
			Missing: missing,
		}
	}
	return s.hydrate(e, recs)
}

// FindBy returns the first record matching q, or nil when none does.
// Belongs-to keys in q may carry *Model values.
func (s *Schema) FindBy(modelName string, q types.Query) (*Model, error) {
	e, tbl, err := s.entryTable(modelName)
	if err != nil {
		return nil, err
	}
	q, err = e.normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	if rec := tbl.FindBy(q); rec != nil {
		return s.newModel(e, rec, true), nil
	}
	return nil, nil
}

// FindByFunc returns the first record accepted by fn, or nil.
func (s *Schema) FindByFunc(modelName string, fn func(types.Record) bool) (*Model, error) {
	e, tbl, err := s.entryTable(modelName)
	if err != nil {
		return nil, err
	}
	if rec := tbl.FindByFunc(fn); rec != nil {
		return s.newModel(e, rec, true), nil
	}
	return nil, nil
}

// FindOrCreateBy returns the first record matching attrs, creating one
// from attrs when none does.
func (s *Schema) FindOrCreateBy(modelName string, attrs map[string]any) (*Model, error) {
	m, err := s.FindBy(modelName, types.Query(attrs))
	if err != nil || m != nil {
		return m, err
	}
	return s.Create(modelName, attrs)
}

// Where returns every record matching q.
func (s *Schema) Where(modelName string, q types.Query) (*Collection, error) {
	e, err := s.lookup(modelName)
	if err != nil {
		return nil, err
	}
	q, err = e.normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	return s.collect(modelName, func(t types.Table) []types.Record { return t.Where(q) })
}

// WhereFunc returns every record accepted by fn.
func (s *Schema) WhereFunc(modelName string, fn func(types.Record) bool) (*Collection, error) {
	return s.collect(modelName, func(t types.Table) []types.Record { return t.WhereFunc(fn) })
}

// First returns the first record of modelName, or nil when the table is
// empty.
func (s *Schema) First(modelName string) (*Model, error) {
	e, tbl, err := s.entryTable(modelName)
	if err != nil {
		return nil, err
	}
	if rec := tbl.First(); rec != nil {
		return s.newModel(e, rec, true), nil
	}
	return nil, nil
}

func (s *Schema) entryTable(modelName string) (*modelEntry, types.Table, error) {
	e, err := s.lookup(modelName)
	if err != nil {
		return nil, nil, err
	}
	tbl, err := s.tableFor(e)
	if err != nil {
		return nil, nil, err
	}
	return e, tbl, nil
}

func (s *Schema) collect(modelName string, fetch func(types.Table) []types.Record) (*Collection, error) {
	e, tbl, err := s.entryTable(modelName)
	if err != nil {
		return nil, err
	}
	return s.hydrate(e, fetch(tbl))
}

func (s *Schema) hydrate(e *modelEntry, recs []types.Record) (*Collection, error) {
	out := make([]*Model, len(recs))
	for i, r := range recs {
		out[i] = s.newModel(e, r, true)
	}
	return NewCollection(e.name, out...)
}

// normalizeQuery rewrites belongs-to keys with *Model values into their
// key fields.
func (e *modelEntry) normalizeQuery(q types.Query) (types.Query, error) {
	out := make(types.Query, len(q))
	for k, v := range q {
		a, ok := e.byKey[k]
		if !ok {
			out[k] = v
			continue
		}
		if a.Kind != KindBelongsTo {
			return nil, fmt.Errorf("%w: cannot query by %s", types.ErrWrongKind, a)
		}
		switch t := v.(type) {
		case nil:
			out[a.ForeignKey] = nil
		case *Model:
			out[a.ForeignKey] = a.valueFor(t)
		default:
			return nil, fmt.Errorf("%w: %s cannot match a %T", types.ErrWrongType, a, v)
		}
	}
	return out, nil
}

// ModelClass is the query surface of one registered model.
type ModelClass struct {
	schema *Schema
	entry  *modelEntry
}

// Name returns the dasherized model name.
func (c *ModelClass) Name() string { return c.entry.name }

// TableName returns the table the model is stored in.
func (c *ModelClass) TableName() string { return c.entry.table }

// Associations returns the model's associations keyed by property name.
func (c *ModelClass) Associations() map[string]*Association {
	out := make(map[string]*Association, len(c.entry.byKey))
	for k, a := range c.entry.byKey {
		out[k] = a
	}
	return out
}

// ForeignKeys returns the key fields stored on the model's records.
func (c *ModelClass) ForeignKeys() []string {
	return append([]string(nil), c.entry.foreignKeys...)
}

// New builds an unsaved handle.
func (c *ModelClass) New(attrs map[string]any) (*Model, error) { return c.schema.build(c.entry, attrs) }

// Create builds and saves a handle.
func (c *ModelClass) Create(attrs map[string]any) (*Model, error) {
	return c.schema.Create(c.entry.name, attrs)
}

// All returns every record.
func (c *ModelClass) All() (*Collection, error) { return c.schema.All(c.entry.name) }

// None returns an empty collection.
func (c *ModelClass) None() (*Collection, error) { return c.schema.None(c.entry.name) }

// Find returns the record with id.
func (c *ModelClass) Find(id string) (*Model, error) { return c.schema.Find(c.entry.name, id) }

// FindMany returns the records with ids.
func (c *ModelClass) FindMany(ids []string) (*Collection, error) {
	return c.schema.FindMany(c.entry.name, ids)
}

// FindBy returns the first record matching q, or nil.
func (c *ModelClass) FindBy(q types.Query) (*Model, error) { return c.schema.FindBy(c.entry.name, q) }

// FindByFunc returns the first record accepted by fn, or nil.
func (c *ModelClass) FindByFunc(fn func(types.Record) bool) (*Model, error) {
	return c.schema.FindByFunc(c.entry.name, fn)
}

// FindOrCreateBy returns the first record matching attrs or creates it.
func (c *ModelClass) FindOrCreateBy(attrs map[string]any) (*Model, error) {
	return c.schema.FindOrCreateBy(c.entry.name, attrs)
}

// Where returns every record matching q.
func (c *ModelClass) Where(q types.Query) (*Collection, error) {
	return c.schema.Where(c.entry.name, q)
}

// WhereFunc returns every record accepted by fn.
func (c *ModelClass) WhereFunc(fn func(types.Record) bool) (*Collection, error) {
	return c.schema.WhereFunc(c.entry.name, fn)
}

// First returns the first record, or nil.
func (c *ModelClass) First() (*Model, error) { return c.schema.First(c.entry.name) }
