// Package orm is pantry's embedded object-relational layer.
//
// A [Schema] registers model [Definition]s, wires their associations
// against each other, and exposes the query surface (New, Create, Find,
// Where, ...). Queries read flat records from a [types.Store] and hydrate
// them into [Model] handles or [Collection]s.
//
// # Associations
//
// Two kinds are supported:
//
//   - [BelongsTo]: the owner holds "<key>Id". A polymorphic belongs-to
//     stores a [types.Ref] in that field.
//   - [HasMany]: each related record holds the key that points back at
//     the owner; the owner stores nothing and reads its children with a
//     fresh lookup on every access.
//
// Inverses are explicit ([Inverse], [NoInverse]) or inferred on first use
// from the related definition. Relationships are always resolved through
// the store by key, never by holding pointers between handles.
//
// # Destroying
//
// [Model.Destroy] consults the schema's dependency index and clears every
// foreign key that points at the destroyed record before removing it.
// Children are unlinked, never deleted.
//
// # Errors
//
// Every error wraps a sentinel from package types:
//
//   - [types.ErrAmbiguousInverse] - registration or lookup found more than one inverse
//   - [types.ErrModelNotRegistered] - query against an unknown model
//   - [types.ErrNotFound] - Find or Reload missed; see [MissingRecordsError]
//   - [types.ErrUnsaved] - Update or Reload on a new handle
//   - [types.ErrDestroyed] - mutation of a destroyed handle
package orm
