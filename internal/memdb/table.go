package memdb

import (
	"fmt"
	"sync"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

var _ types.Table = (*Table)(nil)

// Table stores the records of one type in insertion order.
// Every read returns clones and every write stores clones.
type Table struct {
	mu       sync.RWMutex
	name     string
	records  []types.Record
	identity types.IdentityManager
}

func newTable(name string, identity types.IdentityManager) *Table {
	return &Table{name: name, identity: identity}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Len returns the number of stored records.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// All returns every record in insertion order.
func (t *Table) All() []types.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneAll(t.records)
}

// Insert stores a copy of data. When data has no id the identity manager
// issues one; otherwise the id is registered and must be unused.
func (t *Table) Insert(data types.Record) (types.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLocked(data)
}

// InsertMany inserts each record in order. Records inserted before a
// failure stay stored.
func (t *Table) InsertMany(data []types.Record) ([]types.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]types.Record, 0, len(data))
	for i, d := range data {
		rec, err := t.insertLocked(d)
		if err != nil {
			return out, fmt.Errorf("inserting record %d into %s: %w", i, t.name, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (t *Table) insertLocked(data types.Record) (types.Record, error) {
	rec := data.Clone()
	if rec == nil {
		rec = types.Record{}
	}
	if id := rec.ID(); id != "" {
		if err := t.identity.Set(id); err != nil {
			return nil, fmt.Errorf("inserting into %s: %w", t.name, err)
		}
		rec[types.IDField] = id
	} else {
		rec[types.IDField] = t.identity.Fetch()
	}
	t.records = append(t.records, rec)
	return rec.Clone(), nil
}

// Find returns the record with the given id, or nil.
func (t *Table) Find(id string) types.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i := t.indexOf(id); i >= 0 {
		return t.records[i].Clone()
	}
	return nil
}

// FindMany returns the records for ids in request order, skipping
// missing ids. A repeated id yields its record once.
func (t *Table) FindMany(ids []string) []types.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.Record, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if i := t.indexOf(id); i >= 0 {
			out = append(out, t.records[i].Clone())
		}
	}
	return out
}

// FindBy returns the first record matching q, or nil.
func (t *Table) FindBy(q types.Query) types.Record {
	return t.FindByFunc(func(r types.Record) bool { return r.Matches(q) })
}

// FindByFunc returns the first record accepted by fn, or nil. fn receives
// a copy.
func (t *Table) FindByFunc(fn func(types.Record) bool) types.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.records {
		if cp := r.Clone(); fn(cp) {
			return r.Clone()
		}
	}
	return nil
}

// Where returns every record matching q in table order.
func (t *Table) Where(q types.Query) []types.Record {
	return t.WhereFunc(func(r types.Record) bool { return r.Matches(q) })
}

// WhereFunc returns every record accepted by fn in table order.
func (t *Table) WhereFunc(fn func(types.Record) bool) []types.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := []types.Record{}
	for _, r := range t.records {
		if fn(r.Clone()) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// First returns the first record in table order, or nil.
func (t *Table) First() types.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.records) == 0 {
		return nil
	}
	return t.records[0].Clone()
}

// Update merges attrs into every record.
func (t *Table) Update(attrs types.Record) []types.Record {
	return t.UpdateWhere(types.Query{}, attrs)
}

// UpdateByID merges attrs into the record with the given id.
// The id field itself is never rewritten.
func (t *Table) UpdateByID(id string, attrs types.Record) (types.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s %s", types.ErrNotFound, t.name, id)
	}
	merge(t.records[i], attrs)
	return t.records[i].Clone(), nil
}

// UpdateWhere merges attrs into every record matching q.
func (t *Table) UpdateWhere(q types.Query, attrs types.Record) []types.Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := []types.Record{}
	for _, r := range t.records {
		if r.Matches(q) {
			merge(r, attrs)
			out = append(out, r.Clone())
		}
	}
	return out
}

// Remove clears the table and resets its identity manager.
func (t *Table) Remove() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = nil
	t.identity.Reset()
}

// RemoveByID removes the record with the given id. Its id is not
// released; ids are never reused within a table.
func (t *Table) RemoveByID(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s %s", types.ErrNotFound, t.name, id)
	}
	t.records = append(t.records[:i], t.records[i+1:]...)
	return nil
}

// RemoveWhere removes every record matching q and returns how many were
// removed.
func (t *Table) RemoveWhere(q types.Query) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.records[:0]
	removed := 0
	for _, r := range t.records {
		if r.Matches(q) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	t.records = kept
	return removed
}

// indexOf returns the position of id, or -1. The caller must hold t.mu.
func (t *Table) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, r := range t.records {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

// merge copies attrs into dst, leaving the id untouched.
func merge(dst, attrs types.Record) {
	for k, v := range attrs {
		if k == types.IDField {
			continue
		}
		dst[k] = types.CloneValue(v)
	}
}

func cloneAll(records []types.Record) []types.Record {
	out := make([]types.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
