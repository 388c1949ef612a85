package orm

import (
	"fmt"
	"strconv"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// saveGuard tracks the handles visited by one Save call so that cycles
// between unsaved handles terminate.
type saveGuard struct {
	visiting map[string]bool

	// pending holds key patches waiting for a handle's first insert.
	pending map[string][]func() error
}

func newSaveGuard() *saveGuard {
	return &saveGuard{visiting: map[string]bool{}, pending: map[string][]func() error{}}
}

func (m *Model) guardKey() string {
	return m.entry.name + ":" + strconv.FormatUint(m.serial, 10)
}

func (g *saveGuard) after(m *Model, fn func() error) {
	k := m.guardKey()
	g.pending[k] = append(g.pending[k], fn)
}

func (g *saveGuard) flush(m *Model) error {
	k := m.guardKey()
	fns := g.pending[k]
	delete(g.pending, k)
	for _, fn := range fns {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) save(g *saveGuard) error {
	if m.destroyed {
		return fmt.Errorf("%w: %s", types.ErrDestroyed, m)
	}
	k := m.guardKey()
	if g.visiting[k] {
		return nil
	}
	g.visiting[k] = true

	if err := m.saveParents(g); err != nil {
		return err
	}
	if err := m.persist(); err != nil {
		return err
	}
	if err := g.flush(m); err != nil {
		return err
	}
	if err := m.syncOneToOne(); err != nil {
		return err
	}
	return m.saveChildren(g)
}

// saveParents saves every unsaved parent and copies its id into the
// owner's key field. A parent that is itself waiting on this save gets a
// patch queued for when it is inserted.
func (m *Model) saveParents(g *saveGuard) error {
	for _, a := range m.entry.associations {
		if a.Kind != KindBelongsTo {
			continue
		}
		p, ok := m.parents[a.Key]
		if !ok {
			continue
		}
		if err := p.save(g); err != nil {
			return fmt.Errorf("saving %s of %s: %w", a.Key, m, err)
		}
		delete(m.parents, a.Key)

		if p.persisted {
			m.attrs[a.ForeignKey] = a.valueFor(p)
			continue
		}
		m.attrs[a.ForeignKey] = nil
		child, assoc, parent := m, a, p
		g.after(p, func() error { return child.patchForeignKey(assoc, parent) })
	}
	return nil
}

func (m *Model) patchForeignKey(a *Association, p *Model) error {
	v := a.valueFor(p)
	m.attrs[a.ForeignKey] = v
	if !m.persisted {
		return nil
	}
	tbl, err := m.table()
	if err != nil {
		return err
	}
	if _, err := tbl.UpdateByID(m.ID(), types.Record{a.ForeignKey: v}); err != nil {
		return fmt.Errorf("linking %s.%s: %w", m, a.Key, err)
	}
	return nil
}

// syncOneToOne keeps both sides of a one-to-one pair pointing at each
// other: the new partner points back at m and no other record keeps
// pointing at either of them.
func (m *Model) syncOneToOne() error {
	for _, a := range m.entry.associations {
		if a.Kind != KindBelongsTo || a.Polymorphic {
			continue
		}
		inv := m.schema.bookkeepingInverse(a)
		if inv == nil || inv.Kind != KindBelongsTo {
			continue
		}
		if err := m.syncPair(a, inv); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) syncPair(a, inv *Association) error {
	related, err := m.schema.lookup(a.ModelName)
	if err != nil {
		return err
	}
	relTbl, err := m.schema.tableFor(related)
	if err != nil {
		return err
	}
	ownTbl, err := m.table()
	if err != nil {
		return err
	}
	partnerID := ""
	if v := m.attrs[a.ForeignKey]; v != nil {
		partnerID = types.Stringify(v)
	}

	stale := relTbl.WhereFunc(func(r types.Record) bool {
		return r.ID() != partnerID && refersTo(r[inv.ForeignKey], m, inv.Polymorphic)
	})
	for _, r := range stale {
		if _, err := relTbl.UpdateByID(r.ID(), types.Record{inv.ForeignKey: nil}); err != nil {
			return fmt.Errorf("unlinking %s from %s: %w", r.ID(), m, err)
		}
	}
	if partnerID == "" {
		return nil
	}

	if _, err := relTbl.UpdateByID(partnerID, types.Record{inv.ForeignKey: inv.valueFor(m)}); err != nil {
		return fmt.Errorf("linking %s to %s %s: %w", m, a.ModelName, partnerID, err)
	}
	rivals := ownTbl.WhereFunc(func(r types.Record) bool {
		return r.ID() != m.ID() && r[a.ForeignKey] != nil && types.Stringify(r[a.ForeignKey]) == partnerID
	})
	for _, r := range rivals {
		if _, err := ownTbl.UpdateByID(r.ID(), types.Record{a.ForeignKey: nil}); err != nil {
			return fmt.Errorf("unlinking %s %s: %w", m.entry.name, r.ID(), err)
		}
	}
	return nil
}

// saveChildren applies assigned has-many children: records that are no
// longer children lose their key, the assigned ones gain it and are saved.
func (m *Model) saveChildren(g *saveGuard) error {
	for _, a := range m.entry.associations {
		if a.Kind != KindHasMany {
			continue
		}
		kids, ok := m.children[a.Key]
		if !ok {
			continue
		}
		if err := m.replaceChildren(a, kids, g); err != nil {
			return err
		}
		delete(m.children, a.Key)
	}
	return nil
}

func (m *Model) replaceChildren(a *Association, kids []*Model, g *saveGuard) error {
	fk, _, err := m.schema.childKey(a)
	if err != nil {
		return fmt.Errorf("saving %s.%s: %w", m, a.Key, err)
	}
	holders, err := m.schema.childHolders(a, fk)
	if err != nil {
		return err
	}

	keep := map[string]bool{}
	for _, k := range kids {
		if k.persisted {
			keep[k.entry.name+":"+k.ID()] = true
		}
	}
	for _, h := range holders {
		tbl, err := m.schema.tableFor(h)
		if err != nil {
			return err
		}
		poly := h.isPolymorphicKey(fk)
		old := tbl.WhereFunc(func(r types.Record) bool {
			return !keep[h.name+":"+r.ID()] && refersTo(r[fk], m, poly)
		})
		for _, r := range old {
			if _, err := tbl.UpdateByID(r.ID(), types.Record{fk: nil}); err != nil {
				return fmt.Errorf("unlinking %s %s from %s: %w", h.name, r.ID(), m, err)
			}
		}
	}

	for _, k := range kids {
		v := m.childValue(k.entry, fk)
		k.attrs[fk] = v
		if err := k.save(g); err != nil {
			return fmt.Errorf("saving %s of %s: %w", a.Key, m, err)
		}
		if !k.persisted {
			continue
		}
		tbl, err := k.table()
		if err != nil {
			return err
		}
		if _, err := tbl.UpdateByID(k.ID(), types.Record{fk: v}); err != nil {
			return fmt.Errorf("linking %s to %s: %w", k, m, err)
		}
	}
	return nil
}

// childValue is what a holder record stores in fk to point at m.
func (m *Model) childValue(holder *modelEntry, fk string) any {
	if holder.isPolymorphicKey(fk) {
		return types.Ref{Type: m.entry.name, ID: m.ID()}
	}
	return m.ID()
}

func (e *modelEntry) isPolymorphicKey(fk string) bool {
	a, ok := e.belongsTo[fk]
	return ok && a.Polymorphic
}
