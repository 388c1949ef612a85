package types

// Store owns a set of named Tables and is the single source of truth for
// every record. A Store is process-local.
type Store interface {
	// CreateTable creates an empty table.
	// Returns ErrTableExists if the name is taken.
	CreateTable(name string) (Table, error)

	// Table returns the named table.
	// Returns ErrTableNotFound if it does not exist.
	Table(name string) (Table, error)

	// HasTable reports whether the named table exists.
	HasTable(name string) bool

	// TableNames lists table names in creation order.
	TableNames() []string

	// LoadData inserts records table by table, creating missing tables.
	LoadData(data map[string][]Record) error

	// Dump returns every table's records keyed by table name.
	Dump() map[string][]Record

	// EmptyData removes every record and resets every identity manager.
	// Tables themselves are kept.
	EmptyData()
}
