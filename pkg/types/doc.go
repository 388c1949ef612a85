// Package types defines the Store and Table interfaces, the flat Record
// shape, the polymorphic Ref, the Inflector and IdentityManager contracts
// consumed by the ORM, and the sentinel errors shared by every layer of
// pantry.
package types
