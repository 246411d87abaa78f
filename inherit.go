package kura

import (
	"unsafe"

	"github.com/rotisserie/eris"
)

// maxInheritDepth bounds IsA traversal so a cycle of bases cannot recurse
// forever.
const maxInheritDepth = 32

// ResolveInherited looks id up on the IsA bases of e, depth first in the
// order the bases appear in the table type. It returns the base owning the
// value and a pointer to it, or 0 and nil. Values e owns itself are not
// considered, and ids with TraitDontInherit are never inherited.
func (w *World) ResolveInherited(e Entity, id ID) (owner Entity, ptr unsafe.Pointer) {
	r := w.entities.get(e)
	if r == nil {
		w.misuse(eris.Wrapf(ErrDeadEntity, "cannot resolve %s", id), "ResolveInherited")
		return 0, nil
	}
	cr := w.index.get(id)
	if cr == nil || cr.traits&traitDontInherit != 0 {
		return 0, nil
	}
	t := w.tables[r.table]
	if !t.HasFlags(TableHasIsA) {
		return 0, nil
	}
	owner, ptr, _ = w.resolveInherited(t, cr, 0)
	return owner, ptr
}

// resolveInherited searches the bases of table t for cr. found is true when
// a base has the id, even if the id carries no data.
func (w *World) resolveInherited(t *Table, cr *ComponentRecord, depth int) (owner Entity, ptr unsafe.Pointer, found bool) {
	if depth >= maxInheritDepth {
		w.logger.Warn().Stringer("id", cr.id).Int("depth", depth).Msg("IsA chain too deep, giving up")
		return 0, nil, false
	}
	isa := w.index.isaWildcard
	if isa == nil {
		return 0, nil, false
	}
	tr := t.tableRecordFor(isa)
	if tr == nil {
		return 0, nil, false
	}
	// (IsA, *) pairs sort next to each other, so they form one run.
	for _, id := range t.typ[tr.index : tr.index+tr.count] {
		base := w.entities.aliveAt(id.Second())
		if base == 0 {
			continue
		}
		br := w.entities.get(base)
		bt := w.tables[br.table]
		if ptr, owned := w.getOwned(base, br, bt, cr); owned {
			return base, ptr, true
		}
		if bt.HasFlags(TableHasIsA) {
			if owner, ptr, found := w.resolveInherited(bt, cr, depth+1); found {
				return owner, ptr, true
			}
		}
	}
	return 0, nil, false
}

// Bases returns the direct IsA bases of e.
func (w *World) Bases(e Entity) []Entity {
	if !w.IsAlive(e) {
		return nil
	}
	ids := w.ownedMatching(e, Pair(IsA, Wildcard))
	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		if base := w.entities.aliveAt(id.Second()); base != 0 {
			out = append(out, base)
		}
	}
	return out
}
