package orm

import (
	"fmt"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// disassociateDependents clears every key that points at m. It stops at
// the first failure; keys cleared before it stay cleared.
func (m *Model) disassociateDependents() error {
	for _, a := range m.schema.DependentAssociationsFor(m.entry.name) {
		n, err := m.disassociate(a)
		if err != nil {
			return fmt.Errorf("destroying %s: clearing %s: %w", m, a, err)
		}
		if n > 0 {
			m.schema.logger.Debug("dependents unlinked",
				"model", m.entry.name,
				"id", m.ID(),
				"association", a.String(),
				"count", n,
			)
		}
	}
	return nil
}

// disassociate clears a's key on every record that points at m and
// returns how many records changed. A has-many whose inverse cannot be
// resolved stores no key of its own, so there is nothing to clear; the
// belongs-to side is indexed separately.
func (m *Model) disassociate(a *Association) (int, error) {
	switch a.Kind {
	case KindBelongsTo:
		holder, err := m.schema.lookup(a.Holder)
		if err != nil {
			return 0, err
		}
		return m.clearKey(holder, a.ForeignKey, a.Polymorphic)
	case KindHasMany:
		fk, _, err := m.schema.childKey(a)
		if err != nil {
			m.schema.logger.Debug("dependents skipped", "association", a.String(), "error", err)
			return 0, nil
		}
		holders, err := m.schema.childHolders(a, fk)
		if err != nil {
			return 0, err
		}
		total := 0
		for _, h := range holders {
			n, err := m.clearKey(h, fk, h.isPolymorphicKey(fk))
			if err != nil {
				return total, err
			}
			total += n
		}
		return total, nil
	}
	return 0, fmt.Errorf("%w: %s", types.ErrInvalidAssociation, a)
}

func (m *Model) clearKey(holder *modelEntry, fk string, poly bool) (int, error) {
	tbl, err := m.schema.tableFor(holder)
	if err != nil {
		return 0, err
	}
	hits := tbl.WhereFunc(func(r types.Record) bool { return refersTo(r[fk], m, poly) })
	for _, r := range hits {
		if _, err := tbl.UpdateByID(r.ID(), types.Record{fk: nil}); err != nil {
			return 0, err
		}
	}
	return len(hits), nil
}

// dropFromTempParents removes m from the unsaved state of handles that
// hold it as an assigned child or partner.
func (m *Model) dropFromTempParents() {
	for key, p := range m.parents {
		a := m.entry.byKey[key]
		if inv := m.schema.bookkeepingInverse(a); inv != nil {
			p.forgetTemp(inv, m)
		}
	}
}
