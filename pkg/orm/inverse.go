package orm

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// InverseFor resolves the reciprocal of a. It returns nil when a declares
// NoInverse, when a is polymorphic, or when the related model has no
// association pointing back. More than one inferred candidate is an
// ErrAmbiguousInverse; the error surfaces only when an operation needs
// the inverse. An inferred candidate that names a in its own Inverse
// option wins over candidates that do not.
func (s *Schema) InverseFor(a *Association) (*Association, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inverseLocked(a)
}

func (s *Schema) inverseLocked(a *Association) (*Association, error) {
	if a == nil || a.noInverse || a.Polymorphic {
		return nil, nil
	}

	related, ok := s.entries[a.ModelName]
	if !ok || !related.registered {
		if a.explicitInverse != "" {
			return nil, fmt.Errorf("%w: %s (inverse of %s.%s)", types.ErrModelNotRegistered, a.ModelName, a.OwnerModelName, a.Key)
		}
		return nil, nil
	}

	if a.explicitInverse != "" {
		inv, ok := related.byKey[a.explicitInverse]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s names %s.%s", types.ErrInverseNotFound,
				a.OwnerModelName, a.Key, a.ModelName, a.explicitInverse)
		}
		if a.Kind == KindHasMany && inv.Kind != KindBelongsTo {
			return nil, fmt.Errorf("%w: %s.%s is has-many and so is its inverse %s.%s",
				types.ErrInvalidAssociation, a.OwnerModelName, a.Key, inv.OwnerModelName, inv.Key)
		}
		return inv, nil
	}

	var candidates []*Association
	for _, c := range related.associations {
		if c == a || c.Polymorphic || c.noInverse {
			continue
		}
		if c.ModelName != a.OwnerModelName {
			continue
		}
		if c.explicitInverse != "" && c.explicitInverse != a.Key {
			continue
		}
		if a.Kind == KindHasMany && c.Kind != KindBelongsTo {
			continue
		}
		candidates = append(candidates, c)
	}
	if named := slices.DeleteFunc(slices.Clone(candidates), func(c *Association) bool {
		return c.explicitInverse != a.Key
	}); len(named) > 0 {
		candidates = named
	}

	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return candidates[0], nil
	default:
		keys := make([]string, len(candidates))
		for i, c := range candidates {
			keys[i] = c.Key
		}
		return nil, fmt.Errorf("%w: %s.%s could pair with %s on %s; use an explicit inverse",
			types.ErrAmbiguousInverse, a.OwnerModelName, a.Key, strings.Join(keys, ", "), a.ModelName)
	}
}

// childKey returns the field on a has-many's related records that points
// at the owner, and the inverse that owns it (nil when none).
func (s *Schema) childKey(a *Association) (string, *Association, error) {
	inv, err := s.InverseFor(a)
	if err != nil {
		return "", nil, err
	}
	if inv != nil {
		return inv.ForeignKey, inv, nil
	}
	return a.ForeignKey, nil, nil
}

// childHolders returns the models whose records may be children of a.
func (s *Schema) childHolders(a *Association, fk string) ([]*modelEntry, error) {
	if a.Polymorphic {
		return s.holdersOf(fk), nil
	}
	e, err := s.lookup(a.ModelName)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", a.OwnerModelName, a.Key, err)
	}
	return []*modelEntry{e}, nil
}

// bookkeepingInverse is InverseFor for paths that only mirror state onto
// the other side. An unresolvable inverse means there is nothing to mirror.
func (s *Schema) bookkeepingInverse(a *Association) *Association {
	inv, err := s.InverseFor(a)
	if err != nil {
		s.logger.Debug("inverse unresolved", "association", a.String(), "error", err)
		return nil
	}
	return inv
}
