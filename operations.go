package kura

import (
	"reflect"
	"unsafe"

	"github.com/rotisserie/eris"
)

// validateID checks that id is well formed and refers to live entities.
func (w *World) validateID(id ID, allowWildcard bool) error {
	if id == 0 {
		return eris.Wrap(ErrInvalidID, "id is zero")
	}
	if !allowWildcard && id.IsWildcard() {
		return eris.Wrapf(ErrInvalidID, "wildcard %s is not allowed here", id)
	}
	if !id.IsPair() {
		if id.HasFlags() {
			return eris.Wrapf(ErrInvalidID, "id %d carries unknown flags", uint64(id))
		}
		if !w.IsAlive(id.Entity()) {
			return eris.Wrapf(ErrDeadEntity, "component %s is not alive", id)
		}
		return nil
	}
	first, second := id.First(), id.Second()
	if first == 0 || second == 0 {
		return eris.Wrapf(ErrInvalidID, "pair %s has an empty side", id)
	}
	if w.entities.aliveAt(first) == 0 {
		return eris.Wrapf(ErrDeadEntity, "relation of pair %s is not alive", id)
	}
	if w.entities.aliveAt(second) == 0 {
		return eris.Wrapf(ErrDeadEntity, "target of pair %s is not alive", id)
	}
	return nil
}

// Add adds id to e. Adding an id the entity already has is a no-op. For an
// exclusive relation the previous target is replaced.
func (w *World) Add(e Entity, id ID) error {
	if err := w.checkWritable(); err != nil {
		return eris.Wrapf(err, "cannot add %s to %s", id, e)
	}
	if !w.IsAlive(e) {
		return eris.Wrapf(ErrDeadEntity, "cannot add %s to %s", id, e)
	}
	if err := w.validateID(id, false); err != nil {
		return err
	}
	w.add(e, id)
	return nil
}

// add adds a validated id to a live entity and returns the record of id.
// An id e inherits from a base starts out as a copy of the base value.
func (w *World) add(e Entity, id ID) *ComponentRecord {
	cr := w.ensureRecord(id)
	if id.IsPair() && cr.traits&traitExclusive != 0 {
		w.removeOtherTargets(e, id)
	}
	base := w.inheritedCopy(e, cr)
	if cr.kind == StorageDontFragment {
		w.emplaceSparse(e, cr, base)
		return cr
	}
	r := &w.entities.records[e.Index()]
	t := w.tables[r.table]
	if dst := w.tableWith(t, id); dst != t {
		w.moveEntity(e, dst, id, base)
		if cr.kind == StorageSparse {
			w.emplaceSparse(e, cr, base)
		}
	}
	return cr
}

// inheritedCopy returns a copy of the value e inherits for cr, or nil when
// e owns cr already or inherits no data for it. The copy keeps the value
// valid while e moves, even if the base shares the destination table.
func (w *World) inheritedCopy(e Entity, cr *ComponentRecord) unsafe.Pointer {
	if cr.ti == nil || cr.traits&traitDontInherit != 0 {
		return nil
	}
	r := &w.entities.records[e.Index()]
	t := w.tables[r.table]
	if !t.HasFlags(TableHasIsA) {
		return nil
	}
	if _, owned := w.getOwned(e, r, t, cr); owned {
		return nil
	}
	_, ptr, _ := w.resolveInherited(t, cr, 0)
	if ptr == nil {
		return nil
	}
	v := reflect.New(cr.ti.Type).UnsafePointer()
	cr.ti.copyValue(v, ptr)
	return v
}

// emplaceSparse adds e to the sparse set of cr. A new value starts as a copy
// of init when init is not nil.
func (w *World) emplaceSparse(e Entity, cr *ComponentRecord, init unsafe.Pointer) {
	ptr, added := cr.sparse.emplace(e)
	if !added || cr.ti == nil {
		return
	}
	if init != nil {
		cr.ti.copyValue(ptr, init)
	}
	if cr.ti.Hooks.OnAdd != nil {
		cr.ti.Hooks.OnAdd(e, ptr)
	}
}

func (w *World) removeSparse(e Entity, cr *ComponentRecord) {
	if cr.ti != nil && cr.ti.Hooks.OnRemove != nil {
		if ptr := cr.sparse.get(e); ptr != nil {
			cr.ti.Hooks.OnRemove(e, ptr)
		}
	}
	cr.sparse.remove(e)
}

// removeOtherTargets drops every (R, X) with X different from the target of
// pair from e.
func (w *World) removeOtherTargets(e Entity, pair ID) {
	pattern := Pair(makeEntity(pair.First(), 0), Wildcard)
	for _, id := range w.ownedMatching(e, pattern) {
		if id != pair {
			w.remove(e, id)
		}
	}
}

// ownedMatching returns the concrete ids of e matched by pattern, including
// ids that live outside the table type.
func (w *World) ownedMatching(e Entity, pattern ID) []ID {
	r := &w.entities.records[e.Index()]
	t := w.tables[r.table]
	var out []ID
	if cr := w.index.get(pattern); cr != nil {
		if tr := t.tableRecordFor(cr); tr != nil {
			if !pattern.IsWildcard() {
				out = append(out, pattern)
			} else {
				for _, id := range t.typ[tr.index:] {
					if idMatches(pattern, id) {
						out = append(out, id)
					}
				}
			}
		}
	}
	for it := w.dontFragment.Iterator(); it.HasNext(); {
		cr := w.index.byHandle(it.Next())
		if idMatches(pattern, cr.id) && cr.sparse.has(e) {
			out = append(out, cr.id)
		}
	}
	return out
}

// Remove removes id from e. id may be a wildcard pair, in which case every
// matching pair is removed. Removing an id the entity does not have is a
// no-op.
func (w *World) Remove(e Entity, id ID) error {
	if err := w.checkWritable(); err != nil {
		return eris.Wrapf(err, "cannot remove %s from %s", id, e)
	}
	if !w.IsAlive(e) {
		return eris.Wrapf(ErrDeadEntity, "cannot remove %s from %s", id, e)
	}
	if id == 0 || (!id.IsPair() && id.HasFlags()) {
		return eris.Wrapf(ErrInvalidID, "cannot remove %s from %s", id, e)
	}
	if !id.IsWildcard() {
		w.remove(e, id)
		return nil
	}
	for _, c := range w.ownedMatching(e, id) {
		w.remove(e, c)
	}
	return nil
}

func (w *World) remove(e Entity, id ID) {
	cr := w.index.get(id)
	if cr == nil {
		return
	}
	switch cr.kind {
	case StorageDontFragment:
		if cr.sparse.has(e) {
			w.removeSparse(e, cr)
			w.releaseRecord(cr)
		}
		return
	case StorageSparse:
		if cr.sparse.has(e) {
			w.removeSparse(e, cr)
		}
	}
	r := &w.entities.records[e.Index()]
	t := w.tables[r.table]
	if dst := w.tableWithout(t, id); dst != t {
		w.moveEntity(e, dst, 0, nil)
	}
}

// SetID copies the value at ptr into id of e, adding id first if needed.
// The value must have the type registered for id.
func (w *World) SetID(e Entity, id ID, ptr unsafe.Pointer) error {
	return w.set(e, id, nil, ptr)
}

func (w *World) set(e Entity, id ID, t reflect.Type, ptr unsafe.Pointer) error {
	if err := w.checkWritable(); err != nil {
		return eris.Wrapf(err, "cannot set %s on %s", id, e)
	}
	if !w.IsAlive(e) {
		return eris.Wrapf(ErrDeadEntity, "cannot set %s on %s", id, e)
	}
	if err := w.validateID(id, false); err != nil {
		return err
	}
	cr := w.ensureRecord(id)
	ti := cr.ti
	if ti == nil {
		w.releaseRecord(cr)
		return eris.Wrapf(ErrNotAComponent, "cannot set %s on %s", id, e)
	}
	if t != nil && t != ti.Type {
		w.releaseRecord(cr)
		return eris.Wrapf(ErrTypeMismatch, "%s holds %s, got %s", id, ti.Type, t)
	}
	w.add(e, id)
	r := &w.entities.records[e.Index()]
	dst, _ := w.getOwned(e, r, w.tables[r.table], cr)
	w.assert(dst != nil, "no storage for %s on %s after add", id, e)
	if dst == nil {
		return eris.Wrapf(ErrInternal, "no storage for %s on %s", id, e)
	}
	ti.copyValue(dst, ptr)
	if ti.Hooks.OnSet != nil {
		ti.Hooks.OnSet(e, dst)
	}
	return nil
}

// Set stores v as the T component of e, registering T if needed.
func Set[T any](w *World, e Entity, v T) error {
	c := RegisterComponent[T](w)
	return w.set(e, c.ID(), reflect.TypeFor[T](), unsafe.Pointer(&v))
}

// SetPair stores v in the pair (rel, tgt) of e. The pair must carry data of
// type T.
func SetPair[T any](w *World, e, rel, tgt Entity, v T) error {
	return w.set(e, Pair(rel, tgt), reflect.TypeFor[T](), unsafe.Pointer(&v))
}

// AddPair adds the pair (rel, tgt) to e.
func (w *World) AddPair(e, rel, tgt Entity) error {
	return w.Add(e, Pair(rel, tgt))
}

// RemovePair removes the pair (rel, tgt) from e. Either side may be
// Wildcard.
func (w *World) RemovePair(e, rel, tgt Entity) error {
	return w.Remove(e, Pair(rel, tgt))
}

// IsA makes e inherit the components of base.
func (w *World) IsA(e, base Entity) error {
	return w.Add(e, Pair(IsA, base))
}

// ChildOf makes e a child of parent. An entity has at most one parent and
// is deleted together with it.
func (w *World) ChildOf(e, parent Entity) error {
	return w.Add(e, Pair(ChildOf, parent))
}

// Parent returns the parent of e, or 0.
func (w *World) Parent(e Entity) Entity {
	return w.Target(e, ChildOf, 0)
}

// Target returns the index-th target of relation rel on e, or 0 when there
// is none.
func (w *World) Target(e, rel Entity, index int) Entity {
	if !w.IsAlive(e) || index < 0 {
		return 0
	}
	ids := w.ownedMatching(e, Pair(rel, Wildcard))
	if index >= len(ids) {
		return 0
	}
	return w.entities.aliveAt(ids[index].Second())
}

// Owns reports whether e itself has id. id may be a wildcard pair.
func (w *World) Owns(e Entity, id ID) bool {
	if !w.IsAlive(e) {
		return false
	}
	return len(w.ownedMatching(e, id)) > 0
}

// Has reports whether e has id, either itself or through an IsA base.
func (w *World) Has(e Entity, id ID) bool {
	if w.Owns(e, id) {
		return true
	}
	r := w.entities.get(e)
	if r == nil {
		return false
	}
	t := w.tables[r.table]
	if !t.HasFlags(TableHasIsA) {
		return false
	}
	cr := w.index.get(id)
	if cr == nil || cr.traits&traitDontInherit != 0 {
		return false
	}
	_, _, found := w.resolveInherited(t, cr, 0)
	return found
}

// SetName names e. Names are unique within a world; an empty name removes
// the current one.
func (w *World) SetName(e Entity, name string) error {
	if err := w.checkWritable(); err != nil {
		return eris.Wrapf(err, "cannot name %s", e)
	}
	if !w.IsAlive(e) {
		return eris.Wrapf(ErrDeadEntity, "cannot name %s", e)
	}
	if owner, taken := w.names[name]; taken && owner != e && w.IsAlive(owner) {
		return eris.Wrapf(ErrInvalidParameter, "name %q is already used by %s", name, owner)
	}
	if old := w.Name(e); old != "" {
		delete(w.names, old)
	}
	if name == "" {
		return w.Remove(e, identifierName)
	}
	if err := w.set(e, identifierName, reflect.TypeFor[string](), unsafe.Pointer(&name)); err != nil {
		return err
	}
	w.names[name] = e
	return nil
}

// Name returns the name of e, or "".
func (w *World) Name(e Entity) string {
	r := w.entities.get(e)
	if r == nil {
		return ""
	}
	t := w.tables[r.table]
	if !t.HasFlags(TableHasName) {
		return ""
	}
	ptr, _ := w.getOwned(e, r, t, w.index.identifierName)
	if ptr == nil {
		return ""
	}
	return *(*string)(ptr)
}

// Lookup returns the entity named name, or 0.
func (w *World) Lookup(name string) Entity {
	e, ok := w.names[name]
	if !ok || !w.IsAlive(e) {
		return 0
	}
	return e
}

// Delete destroys e. Ids that use e are removed from every other entity and
// children of e are deleted as well.
func (w *World) Delete(e Entity) error {
	if err := w.checkWritable(); err != nil {
		return eris.Wrapf(err, "cannot delete %s", e)
	}
	r := w.entities.get(e)
	if r == nil {
		return eris.Wrapf(ErrDeadEntity, "cannot delete %s", e)
	}
	if r.flags&flagBuiltin != 0 {
		return eris.Wrapf(ErrInvalidParameter, "cannot delete builtin %s", e)
	}
	w.delete(e)
	return nil
}

func (w *World) delete(e Entity) {
	if name := w.Name(e); name != "" {
		delete(w.names, name)
	}
	if w.entities.records[e.Index()].flags&flagUsedAsID != 0 {
		w.cleanupReferences(e)
	}
	for _, h := range w.dontFragment.ToArray() {
		if cr := w.index.byHandle(h); cr != nil && cr.sparse.has(e) {
			w.removeSparse(e, cr)
			w.releaseRecord(cr)
		}
	}

	r := &w.entities.records[e.Index()]
	t := w.tables[r.table]
	row := int(r.row)
	for i, id := range t.typ {
		if c := t.colIndex[i]; c >= 0 {
			col := &t.columns[c]
			if h := col.ti.Hooks.OnRemove; h != nil {
				h(e, col.at(row))
			}
			continue
		}
		if cr := w.index.get(id); cr.kind == StorageSparse {
			w.removeSparse(e, cr)
		}
	}
	w.removeRow(t, row)
	w.entities.release(e)

	if ti := w.types.get(e.ID()); ti != nil {
		if w.types.byType[ti.Type] == e {
			delete(w.types.byType, ti.Type)
		}
		w.types.remove(e.ID())
	} else {
		for typ, c := range w.types.byType {
			if c == e {
				delete(w.types.byType, typ)
			}
		}
	}
	if uint64(e) < HiComponentID {
		w.nonTrivial.unset(uint8(e))
	}
}

// cleanupReferences removes e as a component, relation or target from every
// other entity. Entities that are children of e are deleted.
func (w *World) cleanupReferences(e Entity) {
	plain, asRel, asTgt := e.ID(), Pair(e, Wildcard), Pair(Wildcard, e)
	childOf := Pair(ChildOf, e)

	var children []Entity
	holders := make(map[ID][]Entity, 3)
	for _, id := range [...]ID{plain, asRel, asTgt} {
		cr := w.index.get(id)
		if cr == nil {
			continue
		}
		for _, t := range w.TablesWith(id) {
			for _, holder := range t.entities {
				if id == asTgt && t.Has(childOf) {
					children = append(children, holder)
					continue
				}
				holders[id] = append(holders[id], holder)
			}
		}
	}
	for it := w.dontFragment.Iterator(); it.HasNext(); {
		cr := w.index.byHandle(it.Next())
		if !idMatches(plain, cr.id) && !idMatches(asRel, cr.id) && !idMatches(asTgt, cr.id) {
			continue
		}
		for _, holder := range cr.sparse.entities() {
			holders[cr.id] = append(holders[cr.id], holder)
		}
	}

	for id, list := range holders {
		for _, holder := range list {
			if !w.IsAlive(holder) {
				continue
			}
			if id.IsWildcard() {
				for _, c := range w.ownedMatching(holder, id) {
					w.remove(holder, c)
				}
				continue
			}
			w.remove(holder, id)
		}
	}
	for _, child := range children {
		if child != e && w.IsAlive(child) {
			w.delete(child)
		}
	}

	// Tables and records keyed on e would alias a recycled index.
	var stale []*Table
	for _, id := range [...]ID{plain, asRel, asTgt} {
		if cr := w.index.get(id); cr != nil {
			cr.pinned = false
			for _, t := range w.TablesWith(id) {
				if len(t.entities) == 0 && t.id != 0 {
					stale = append(stale, t)
				}
			}
		}
	}
	w.deleteTables(stale)
	for _, id := range [...]ID{plain, asRel, asTgt} {
		w.releaseRecord(w.index.get(id))
	}
}
