// Package memdb provides the public API for pantry's in-memory record
// store while keeping implementation details internal.
package memdb

import (
	"log/slog"

	"github.com/mesh-intelligence/pantry/internal/memdb"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Option configures a store created by New.
type Option = memdb.Option

// New creates an empty in-memory store.
//
// Example:
//
//	store := memdb.New(memdb.WithIdentity(memdb.UUID))
//	users, _ := store.CreateTable("users")
//	users.Insert(types.Record{"name": "Zelda"})
func New(opts ...Option) types.Store {
	return memdb.New(opts...)
}

// Identity strategies.
var (
	Counter types.IdentityFactory = memdb.NewCounterIdentity
	UUID    types.IdentityFactory = memdb.NewUUIDIdentity
)

// WithIdentity sets the identity strategy for every table.
func WithIdentity(f types.IdentityFactory) Option { return memdb.WithIdentity(f) }

// WithTableIdentity overrides the identity strategy for one table.
func WithTableIdentity(table string, f types.IdentityFactory) Option {
	return memdb.WithTableIdentity(table, f)
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option { return memdb.WithLogger(l) }
