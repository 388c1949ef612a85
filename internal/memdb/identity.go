package memdb

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

var (
	_ types.IdentityManager = (*CounterIdentity)(nil)
	_ types.IdentityManager = (*UUIDIdentity)(nil)
)

// CounterIdentity issues incrementing integers, rendered as strings,
// starting at 1. Numeric ids registered through Set advance the counter
// past them so Fetch never hands out an id that is already stored.
type CounterIdentity struct {
	next  int
	taken map[string]bool
}

// NewCounterIdentity returns a CounterIdentity starting at 1.
func NewCounterIdentity() types.IdentityManager {
	return &CounterIdentity{next: 1, taken: make(map[string]bool)}
}

// Fetch returns the next unused integer id and marks it taken.
func (c *CounterIdentity) Fetch() string {
	for c.taken[strconv.Itoa(c.next)] {
		c.next++
	}
	id := strconv.Itoa(c.next)
	c.taken[id] = true
	c.next++
	return id
}

// Set marks id as taken. Returns ErrIDTaken if it already is.
func (c *CounterIdentity) Set(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	if c.taken[id] {
		return fmt.Errorf("%w: %s", types.ErrIDTaken, id)
	}
	if n, err := strconv.Atoi(id); err == nil && n >= c.next {
		c.next = n + 1
	}
	c.taken[id] = true
	return nil
}

// Reset makes every id available and restarts the counter at 1.
func (c *CounterIdentity) Reset() {
	c.next = 1
	c.taken = make(map[string]bool)
}

// UUIDIdentity issues UUID v7 strings.
type UUIDIdentity struct {
	taken map[string]bool
}

// NewUUIDIdentity returns an empty UUIDIdentity.
func NewUUIDIdentity() types.IdentityManager {
	return &UUIDIdentity{taken: make(map[string]bool)}
}

// Fetch returns a fresh UUID v7 and marks it taken.
func (u *UUIDIdentity) Fetch() string {
	for {
		id := newUUID()
		if !u.taken[id] {
			u.taken[id] = true
			return id
		}
	}
}

// Set marks id as taken. Returns ErrIDTaken if it already is.
func (u *UUIDIdentity) Set(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	if u.taken[id] {
		return fmt.Errorf("%w: %s", types.ErrIDTaken, id)
	}
	u.taken[id] = true
	return nil
}

// Reset forgets every issued id.
func (u *UUIDIdentity) Reset() {
	u.taken = make(map[string]bool)
}

// newUUID generates a UUID v7 string, falling back to v4.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// IdentityFor maps a configured strategy name to its factory.
// An empty name selects the counter strategy.
func IdentityFor(strategy string) (types.IdentityFactory, error) {
	switch strategy {
	case "", types.IdentityCounter:
		return NewCounterIdentity, nil
	case types.IdentityUUID:
		return NewUUIDIdentity, nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrIdentityUnknown, strategy)
	}
}
