package types

// IdentityManager issues and validates unique ids for one table.
type IdentityManager interface {
	// Fetch returns an id not yet in use and marks it taken.
	Fetch() string

	// Set marks id as taken. Returns ErrIDTaken if it already is.
	Set(id string) error

	// Reset marks every id available again.
	Reset()
}

// IdentityFactory builds a fresh IdentityManager for a new table.
type IdentityFactory func() IdentityManager
