package types

// Table is a named, ordered sequence of records of one type. Every method
// returns copies; mutating a returned Record never affects storage.
type Table interface {
	// Name returns the table name (e.g. "blogPosts").
	Name() string

	// Len returns the number of stored records.
	Len() int

	// All returns every record in insertion order.
	All() []Record

	// Insert stores a record. A record without an id receives the next id
	// from the table's IdentityManager; a record with an id registers it
	// and fails with ErrIDTaken when it is already in use.
	Insert(data Record) (Record, error)

	// InsertMany inserts each record in order and returns the stored copies.
	InsertMany(data []Record) ([]Record, error)

	// Find returns the record with the given id, or nil.
	Find(id string) Record

	// FindMany returns the records matching ids, in the order requested.
	// Each distinct id appears at most once.
	// Missing ids are skipped; callers compare the count.
	FindMany(ids []string) []Record

	// FindBy returns the first record matching q, or nil.
	FindBy(q Query) Record

	// FindByFunc returns the first record accepted by fn, or nil.
	FindByFunc(fn func(Record) bool) Record

	// Where returns every record matching q in table order.
	Where(q Query) []Record

	// WhereFunc returns every record accepted by fn in table order.
	WhereFunc(fn func(Record) bool) []Record

	// First returns the first record in table order, or nil.
	First() Record

	// Update merges attrs into every record.
	Update(attrs Record) []Record

	// UpdateByID merges attrs into one record.
	// Returns ErrNotFound if no record has that id.
	UpdateByID(id string, attrs Record) (Record, error)

	// UpdateWhere merges attrs into every record matching q.
	UpdateWhere(q Query, attrs Record) []Record

	// Remove clears the table and resets its identity manager.
	Remove()

	// RemoveByID removes one record. Returns ErrNotFound if absent.
	RemoveByID(id string) error

	// RemoveWhere removes every record matching q and returns the count.
	RemoveWhere(q Query) int
}
