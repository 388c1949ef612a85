package types

import "errors"

// Configuration errors.
var (
	ErrNoStore            = errors.New("schema requires a store")
	ErrNoInflector        = errors.New("schema requires an inflector")
	ErrAmbiguousInverse   = errors.New("multiple possible inverse relationships")
	ErrModelNotRegistered = errors.New("model not registered")
	ErrModelRegistered    = errors.New("model already registered")
	ErrInverseNotFound    = errors.New("inverse association not found")
	ErrInvalidAssociation = errors.New("invalid association")
)

// Lookup errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrTableNotFound = errors.New("table not found")
	ErrTableExists   = errors.New("table already exists")
)

// Integrity errors.
var (
	ErrIDTaken   = errors.New("id already taken")
	ErrInvalidID = errors.New("invalid id")
)

// Usage errors.
var (
	ErrUnsaved     = errors.New("model has not been saved")
	ErrDestroyed   = errors.New("model has been destroyed")
	ErrNoModelName = errors.New("collection requires a model name")
	ErrWrongKind   = errors.New("association has the wrong kind for this accessor")
	ErrWrongType   = errors.New("model has the wrong type for this association")
)
