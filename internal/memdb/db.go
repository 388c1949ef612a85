// Package memdb implements the in-memory record store behind pantry: a set
// of named tables of flat records, each with its own identity manager.
package memdb

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

var _ types.Store = (*DB)(nil)

// DB is a process-local store of named tables.
type DB struct {
	mu       sync.RWMutex
	tables   map[string]*Table
	order    []string
	identity types.IdentityFactory
	perTable map[string]types.IdentityFactory
	logger   *slog.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithIdentity sets the identity factory used for every new table.
func WithIdentity(f types.IdentityFactory) Option {
	return func(db *DB) {
		if f != nil {
			db.identity = f
		}
	}
}

// WithTableIdentity overrides the identity factory for one table name.
func WithTableIdentity(table string, f types.IdentityFactory) Option {
	return func(db *DB) {
		if f != nil {
			db.perTable[table] = f
		}
	}
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// New creates an empty DB. Tables use CounterIdentity unless configured
// otherwise.
func New(opts ...Option) *DB {
	db := &DB{
		tables:   make(map[string]*Table),
		identity: NewCounterIdentity,
		perTable: make(map[string]types.IdentityFactory),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// CreateTable creates an empty table.
// Returns ErrTableExists if the name is taken.
func (db *DB) CreateTable(name string) (types.Table, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.tables[name]; ok {
		return nil, fmt.Errorf("%w: %s", types.ErrTableExists, name)
	}
	return db.createLocked(name), nil
}

func (db *DB) createLocked(name string) *Table {
	factory := db.identity
	if f, ok := db.perTable[name]; ok {
		factory = f
	}
	t := newTable(name, factory())
	db.tables[name] = t
	db.order = append(db.order, name)
	db.logger.Debug("table created", "table", name)
	return t
}

// Table returns the named table.
// Returns ErrTableNotFound if it does not exist.
func (db *DB) Table(name string) (types.Table, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, ok := db.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrTableNotFound, name)
	}
	return t, nil
}

// HasTable reports whether the named table exists.
func (db *DB) HasTable(name string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.tables[name]
	return ok
}

// TableNames lists table names in creation order.
func (db *DB) TableNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]string(nil), db.order...)
}

// LoadData inserts fixture records, creating tables as needed. Tables are
// loaded in sorted name order so id assignment is deterministic. {type, id}
// objects are stored as types.Ref.
func (db *DB) LoadData(data map[string][]types.Record) error {
	for _, name := range sortedKeys(data) {
		db.mu.Lock()
		t, ok := db.tables[name]
		if !ok {
			t = db.createLocked(name)
		}
		db.mu.Unlock()

		recs := make([]types.Record, len(data[name]))
		for i, r := range data[name] {
			recs[i] = r.Clone()
			normalizeRecord(recs[i])
		}
		if _, err := t.InsertMany(recs); err != nil {
			return fmt.Errorf("loading %s: %w", name, err)
		}
		db.logger.Debug("fixtures loaded", "table", name, "records", len(data[name]))
	}
	return nil
}

// Dump returns a copy of every table's records keyed by table name.
func (db *DB) Dump() map[string][]types.Record {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make(map[string][]types.Record, len(db.tables))
	for name, t := range db.tables {
		out[name] = t.All()
	}
	return out
}

// EmptyData clears every table and resets identity. Tables are kept.
func (db *DB) EmptyData() {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, t := range db.tables {
		t.Remove()
	}
}
