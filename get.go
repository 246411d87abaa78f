package kura

import (
	"reflect"
	"unsafe"

	"github.com/rotisserie/eris"
)

// GetID returns a pointer to the id value of e, or nil when e does not have
// it. Components e does not own are looked up on its IsA bases. The pointer
// is valid until the next structural change of the table of e.
func (w *World) GetID(e Entity, id ID) unsafe.Pointer {
	r := w.entities.get(e)
	if r == nil {
		w.misuse(eris.Wrapf(ErrDeadEntity, "cannot get %s", id), "GetID")
		return nil
	}
	if id == 0 || (!id.IsPair() && id.HasFlags()) {
		w.misuse(eris.Wrapf(ErrInvalidID, "cannot get %d", uint64(id)), "GetID")
		return nil
	}
	return w.get(e, r, w.tables[r.table], id)
}

// GetMutID is GetID for writing. It never returns a value inherited from a
// base; add an own instance first. Calling it inside a readonly window is a
// bug and panics when debug checks are on.
func (w *World) GetMutID(e Entity, id ID) unsafe.Pointer {
	if w.cfg.Debug && w.readonly.Load() {
		panic(eris.Wrapf(ErrAccessViolation, "GetMut of %s on %s", id, e))
	}
	r := w.entities.get(e)
	if r == nil {
		w.misuse(eris.Wrapf(ErrDeadEntity, "cannot get %s", id), "GetMutID")
		return nil
	}
	if id == 0 || (!id.IsPair() && id.HasFlags()) {
		w.misuse(eris.Wrapf(ErrInvalidID, "cannot get %d", uint64(id)), "GetMutID")
		return nil
	}
	t := w.tables[r.table]
	if ptr, ok := w.getLow(r, t, id); ok {
		return ptr
	}
	cr := w.index.get(id)
	if cr == nil {
		return nil
	}
	ptr, _ := w.getOwned(e, r, t, cr)
	return ptr
}

func (w *World) get(e Entity, r *entityRecord, t *Table, id ID) unsafe.Pointer {
	if ptr, ok := w.getLow(r, t, id); ok {
		return ptr
	}
	cr := w.index.get(id)
	if cr == nil {
		return nil
	}
	if ptr, owned := w.getOwned(e, r, t, cr); owned {
		return ptr
	}
	if !t.HasFlags(TableHasIsA) || cr.traits&traitDontInherit != 0 {
		return nil
	}
	_, ptr, _ := w.resolveInherited(t, cr, 0)
	return ptr
}

// getLow resolves plain low ids through the column map of the table. ok is
// false when the id has to take the component record path.
func (w *World) getLow(r *entityRecord, t *Table, id ID) (ptr unsafe.Pointer, ok bool) {
	if id.IsPair() || uint64(id) >= HiComponentID || w.nonTrivial.has(uint8(id)) {
		return nil, false
	}
	if c := t.lowColumns[id]; c > 0 {
		return t.columns[c-1].at(int(r.row)), true
	}
	if t.HasFlags(TableHasIsA) {
		return nil, false
	}
	return nil, true
}

// getOwned returns the value of cr stored for e itself. owned is true when e
// has the id, even if it carries no data.
func (w *World) getOwned(e Entity, r *entityRecord, t *Table, cr *ComponentRecord) (ptr unsafe.Pointer, owned bool) {
	if cr.kind.isSparse() {
		if cr.sparse.has(e) {
			return cr.sparse.get(e), true
		}
		if cr.kind == StorageDontFragment {
			return nil, false
		}
	}
	tr := t.tableRecordFor(cr)
	if tr == nil {
		return nil, false
	}
	if tr.column < 0 {
		return nil, true
	}
	w.assert(int(r.row) < len(t.entities) && t.entities[r.row] == e,
		"record of %s points at row %d of table %d", e, r.row, t.id)
	return t.columns[tr.column].at(int(r.row)), true
}

// Get returns the T component of e, or nil.
func Get[T any](w *World, e Entity) *T {
	c, ok := ComponentFor[T](w)
	if !ok {
		return nil
	}
	return (*T)(w.GetID(e, c.ID()))
}

// GetMut returns the own T component of e for writing, or nil.
func GetMut[T any](w *World, e Entity) *T {
	c, ok := ComponentFor[T](w)
	if !ok {
		return nil
	}
	return (*T)(w.GetMutID(e, c.ID()))
}

// GetPair returns the value of the pair (rel, tgt) of e, or nil. The pair
// must carry data of type T.
func GetPair[T any](w *World, e, rel, tgt Entity) *T {
	id := Pair(rel, tgt)
	if !w.pairHoldsType(id, reflect.TypeFor[T]()) {
		return nil
	}
	return (*T)(w.GetID(e, id))
}

// GetPairMut returns the own value of the pair (rel, tgt) of e for writing.
func GetPairMut[T any](w *World, e, rel, tgt Entity) *T {
	id := Pair(rel, tgt)
	if !w.pairHoldsType(id, reflect.TypeFor[T]()) {
		return nil
	}
	return (*T)(w.GetMutID(e, id))
}

func (w *World) pairHoldsType(id ID, t reflect.Type) bool {
	ti := w.getTypeInfo(id, w.index.get(id))
	if ti == nil {
		return false
	}
	if ti.Type != t {
		w.misuse(eris.Wrapf(ErrTypeMismatch, "%s holds %s, not %s", id, ti.Type, t), "GetPair")
		return false
	}
	return true
}

// GetTypeInfo returns the layout of the data carried by id, or nil when id
// is a tag.
func (w *World) GetTypeInfo(id ID) *TypeInfo {
	if err := w.validateID(id, true); err != nil {
		w.misuse(err, "GetTypeInfo")
		return nil
	}
	return w.getTypeInfo(id, w.index.get(id))
}

// GetTypeID returns the component entity whose type id carries, or 0.
func (w *World) GetTypeID(id ID) Entity {
	ti := w.GetTypeInfo(id)
	if ti == nil {
		return 0
	}
	return ti.Component
}

// getTypeInfo resolves the type of id. A known record answers directly,
// even for tags. A pair without one tries (R, *) and, unless R is a tag
// relation, (*, T).
func (w *World) getTypeInfo(id ID, cr *ComponentRecord) *TypeInfo {
	if cr != nil {
		return cr.ti
	}
	if !id.IsPair() {
		return w.types.get(id)
	}
	wc := Wildcard.Index()
	first, second := id.First(), id.Second()
	if first != wc {
		rel := w.entities.aliveAt(first)
		if relRec := w.index.get(rel.ID()); relRec != nil && relRec.traits&traitPairIsTag != 0 {
			return nil
		}
		if wr := w.index.get(Pair(rel, Wildcard)); wr != nil && wr.ti != nil {
			return wr.ti
		}
	}
	if second == wc {
		return nil
	}
	if wr := w.index.get(Pair(Wildcard, makeEntity(second, 0))); wr != nil {
		return wr.ti
	}
	return nil
}

// RelationshipCount returns how many ids of table match id, or -1 when the
// table does not hold id.
func (w *World) RelationshipCount(id ID, table *Table) int {
	if table == nil {
		w.misuse(ErrInvalidParameter, "RelationshipCount: nil table")
		return -1
	}
	if err := w.validateID(id, true); err != nil {
		w.misuse(err, "RelationshipCount")
		return -1
	}
	cr := w.index.get(id)
	if cr == nil {
		return -1
	}
	tr := table.tableRecordFor(cr)
	if tr == nil {
		return -1
	}
	return tr.count
}
