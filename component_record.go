package kura

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/rotisserie/eris"
)

// StorageKind tells where the data of an id lives.
type StorageKind uint8

const (
	// StorageColumn ids have a column in every table that holds them.
	StorageColumn StorageKind = iota
	// StorageTag ids carry no data; they only change the table type.
	StorageTag
	// StorageSparse ids are part of the table type but keep their data in a
	// sparse set instead of a column.
	StorageSparse
	// StorageDontFragment ids never enter a table type. Adding one does not
	// move the entity; the value lives in a sparse set only.
	StorageDontFragment
)

func (k StorageKind) String() string {
	switch k {
	case StorageColumn:
		return "column"
	case StorageTag:
		return "tag"
	case StorageSparse:
		return "sparse"
	case StorageDontFragment:
		return "dont_fragment"
	}
	return "unknown"
}

func (k StorageKind) isSparse() bool {
	return k == StorageSparse || k == StorageDontFragment
}

// Trait changes how a component or relation is stored or resolved.
type Trait uint8

const (
	// TraitSparse stores the component in a sparse set.
	TraitSparse Trait = iota + 1
	// TraitDontFragment stores the component in a sparse set and keeps it
	// out of table types.
	TraitDontFragment
	// TraitPairIsTag makes every pair with this relation a tag.
	TraitPairIsTag
	// TraitDontInherit stops IsA lookups for the component.
	TraitDontInherit
	// TraitExclusive allows at most one target per entity for a relation.
	TraitExclusive
)

type traitFlags uint8

const (
	traitPairIsTag traitFlags = 1 << iota
	traitDontInherit
	traitExclusive
)

// ComponentRecord describes every table that holds one id. There is exactly
// one record per id value; records are created on first use and released
// once no table, sparse value or pair references them.
type ComponentRecord struct {
	id       ID
	handle   uint32
	kind     StorageKind
	traits   traitFlags
	ti       *TypeInfo
	cache    map[uint32]int // table id -> index into the table's records
	tables   *roaring.Bitmap
	sparse   *sparseSet
	first    *ComponentRecord // (R, *) of a concrete pair
	second   *ComponentRecord // (*, T) of a concrete pair
	children int              // concrete pair records pointing here
	pinned   bool
}

// ID returns the id the record describes.
func (cr *ComponentRecord) ID() ID { return cr.id }

// Storage returns where the id keeps its data.
func (cr *ComponentRecord) Storage() StorageKind { return cr.kind }

// TypeInfo returns the layout of the id, or nil for tags.
func (cr *ComponentRecord) TypeInfo() *TypeInfo { return cr.ti }

// TableCount returns the number of tables holding the id.
func (cr *ComponentRecord) TableCount() int { return len(cr.cache) }

// TableIDs returns the ids of the tables holding the id in ascending order.
func (cr *ComponentRecord) TableIDs() []uint32 { return cr.tables.ToArray() }

// SparseCount returns the number of entities with a sparse value for the id.
func (cr *ComponentRecord) SparseCount() int {
	if cr.sparse == nil {
		return 0
	}
	return cr.sparse.count()
}

// HasTrait reports whether t applies to the id.
func (cr *ComponentRecord) HasTrait(t Trait) bool {
	switch t {
	case TraitSparse:
		return cr.kind == StorageSparse
	case TraitDontFragment:
		return cr.kind == StorageDontFragment
	case TraitPairIsTag:
		return cr.traits&traitPairIsTag != 0
	case TraitDontInherit:
		return cr.traits&traitDontInherit != 0
	case TraitExclusive:
		return cr.traits&traitExclusive != 0
	}
	return false
}

func (cr *ComponentRecord) addTable(tableID uint32, recordIndex int) {
	cr.cache[tableID] = recordIndex
	cr.tables.Add(tableID)
}

func (cr *ComponentRecord) removeTable(tableID uint32) {
	delete(cr.cache, tableID)
	cr.tables.Remove(tableID)
}

func (cr *ComponentRecord) used() bool {
	return len(cr.cache) > 0 || cr.children > 0 || cr.SparseCount() > 0
}

// componentIndex resolves ids to records. The three hottest wildcard pairs
// have their own fields, non pair ids below HiComponentID use a dense array
// and everything else goes through a map. Records are owned by an arena and
// addressed by stable handles.
type componentIndex struct {
	isaWildcard     *ComponentRecord
	childOfWildcard *ComponentRecord
	identifierName  *ComponentRecord
	lo              [HiComponentID]*ComponentRecord
	hi              map[ID]*ComponentRecord
	arena           []*ComponentRecord
	free            []uint32
	count           int
}

func newComponentIndex() componentIndex {
	return componentIndex{
		hi:    make(map[ID]*ComponentRecord),
		arena: make([]*ComponentRecord, 0, 64),
	}
}

func (ix *componentIndex) get(id ID) *ComponentRecord {
	switch id {
	case isaWildcard:
		return ix.isaWildcard
	case childOfWildcard:
		return ix.childOfWildcard
	case identifierName:
		return ix.identifierName
	}
	if uint64(id) < HiComponentID {
		return ix.lo[id]
	}
	return ix.hi[id]
}

func (ix *componentIndex) byHandle(handle uint32) *ComponentRecord {
	return ix.arena[handle]
}

func (ix *componentIndex) slot(id ID, cr *ComponentRecord) {
	switch id {
	case isaWildcard:
		ix.isaWildcard = cr
	case childOfWildcard:
		ix.childOfWildcard = cr
	case identifierName:
		ix.identifierName = cr
	}
	switch {
	case uint64(id) < HiComponentID:
		ix.lo[id] = cr
	case cr == nil:
		delete(ix.hi, id)
	default:
		ix.hi[id] = cr
	}
}

func (ix *componentIndex) insert(cr *ComponentRecord) {
	if n := len(ix.free); n > 0 {
		cr.handle = ix.free[n-1]
		ix.free = ix.free[:n-1]
		ix.arena[cr.handle] = cr
	} else {
		cr.handle = uint32(len(ix.arena))
		ix.arena = append(ix.arena, cr)
	}
	ix.slot(cr.id, cr)
	ix.count++
}

func (ix *componentIndex) remove(cr *ComponentRecord) {
	ix.slot(cr.id, nil)
	ix.arena[cr.handle] = nil
	ix.free = append(ix.free, cr.handle)
	ix.count--
}

// ResolveComponentRecord returns the record of id without creating it.
func (w *World) ResolveComponentRecord(id ID) *ComponentRecord {
	return w.index.get(id)
}

// EnsureComponentRecord returns the record of id, creating it if needed. The
// record is pinned: it stays alive while unused.
func (w *World) EnsureComponentRecord(id ID) (*ComponentRecord, error) {
	if err := w.validateID(id, true); err != nil {
		return nil, err
	}
	cr := w.ensureRecord(id)
	cr.pinned = true
	return cr, nil
}

// ensureRecord returns the record of a validated id, creating it and, for
// pairs, its wildcard records.
func (w *World) ensureRecord(id ID) *ComponentRecord {
	if cr := w.index.get(id); cr != nil {
		return cr
	}
	cr := &ComponentRecord{
		id:     id,
		cache:  make(map[uint32]int),
		tables: roaring.New(),
	}
	var rel *ComponentRecord
	if id.IsPair() {
		wc := Wildcard.Index()
		first, second := id.First(), id.Second()
		if first != wc {
			relEntity := w.entities.aliveAt(first)
			rel = w.index.get(relEntity.ID())
			w.markUsed(relEntity)
			w.markNonTrivial(relEntity)
		}
		if second != wc {
			tgtEntity := w.entities.aliveAt(second)
			w.markUsed(tgtEntity)
			w.markNonTrivial(tgtEntity)
		}
		if first != wc && second != wc {
			cr.first = w.ensureRecord(Pair(makeEntity(first, 0), Wildcard))
			cr.first.children++
			cr.second = w.ensureRecord(Pair(Wildcard, makeEntity(second, 0)))
			cr.second.children++
		}
	} else {
		w.markUsed(id.Entity())
	}

	cr.ti = w.recordTypeInfo(id, rel)
	cr.kind = StorageTag
	if cr.ti != nil {
		cr.kind = StorageColumn
	}
	if rel != nil {
		cr.traits = rel.traits
		if rel.kind.isSparse() && !id.IsWildcard() {
			cr.kind = rel.kind
		}
	}
	if cr.kind.isSparse() {
		cr.sparse = newSparseSet(cr.ti)
	}
	w.index.insert(cr)
	if cr.kind == StorageDontFragment {
		w.dontFragment.Add(cr.handle)
	}
	return cr
}

// recordTypeInfo decides the data type of a new record. A pair takes the
// type of its relation; if the relation carries none and is not a tag
// relation, it takes the type of its target.
func (w *World) recordTypeInfo(id ID, rel *ComponentRecord) *TypeInfo {
	if !id.IsPair() {
		return w.types.get(id)
	}
	if rel != nil && rel.traits&traitPairIsTag != 0 {
		return nil
	}
	wc := Wildcard.Index()
	first, second := id.First(), id.Second()
	var relTI, tgtTI *TypeInfo
	if first != wc {
		relTI = w.types.get(w.entities.aliveAt(first).ID())
	}
	if second != wc {
		tgtTI = w.types.get(w.entities.aliveAt(second).ID())
	}
	switch {
	case second == wc:
		return relTI
	case first == wc:
		return tgtTI
	case relTI != nil:
		return relTI
	}
	return tgtTI
}

// markUsed flags e so deleting it cleans up ids that reference it.
func (w *World) markUsed(e Entity) {
	r := w.entities.get(e)
	if r == nil {
		return
	}
	r.flags |= flagUsedAsID
}

// releaseRecord frees cr once nothing references it.
func (w *World) releaseRecord(cr *ComponentRecord) {
	if cr == nil || cr.pinned || cr.used() || w.index.byHandle(cr.handle) != cr {
		return
	}
	w.index.remove(cr)
	w.dontFragment.Remove(cr.handle)
	Publish(w.events, ComponentRecordReleased{ID: cr.id})
	for _, parent := range [...]*ComponentRecord{cr.first, cr.second} {
		if parent != nil {
			parent.children--
			w.releaseRecord(parent)
		}
	}
}

// inUse reports whether c is referenced by any table or sparse value, as a
// plain id or as one side of a pair.
func (w *World) inUse(c Entity) bool {
	for _, id := range [...]ID{c.ID(), Pair(c, Wildcard), Pair(Wildcard, c)} {
		if cr := w.index.get(id); cr != nil && cr.used() {
			return true
		}
	}
	return false
}

// AddTrait applies t to component or relation c. Storage traits must be set
// before c is used.
func (w *World) AddTrait(c Entity, t Trait) error {
	if !w.IsAlive(c) {
		return eris.Wrapf(ErrDeadEntity, "cannot add trait to %s", c)
	}
	cr := w.ensureRecord(c.ID())
	cr.pinned = true
	switch t {
	case TraitSparse, TraitDontFragment:
		if w.inUse(c) {
			return eris.Wrapf(ErrComponentInUse, "cannot change storage of %s", c)
		}
		if t == TraitSparse {
			cr.kind = StorageSparse
			w.dontFragment.Remove(cr.handle)
		} else {
			cr.kind = StorageDontFragment
			w.dontFragment.Add(cr.handle)
		}
		if cr.sparse == nil {
			cr.sparse = newSparseSet(cr.ti)
		}
		w.markNonTrivial(c)
	case TraitPairIsTag:
		if rel := w.index.get(Pair(c, Wildcard)); rel != nil && rel.used() {
			return eris.Wrapf(ErrComponentInUse, "cannot make pairs of %s tags", c)
		}
		cr.traits |= traitPairIsTag
	case TraitDontInherit:
		cr.traits |= traitDontInherit
		w.markNonTrivial(c)
	case TraitExclusive:
		cr.traits |= traitExclusive
	default:
		return eris.Wrapf(ErrInvalidParameter, "unknown trait %d", t)
	}
	w.propagateTraits(c, cr.traits)
	return nil
}

// propagateTraits copies the relation traits of c to the pair records of c
// that already exist. Records created later copy them in ensureRecord.
func (w *World) propagateTraits(c Entity, traits traitFlags) {
	for _, pr := range w.index.arena {
		if pr == nil || !pr.id.IsPair() || pr.id.First() != c.Index() {
			continue
		}
		pr.traits |= traits
		if traits&traitPairIsTag != 0 && pr.kind == StorageColumn {
			pr.ti = nil
			pr.kind = StorageTag
		}
	}
}

func (w *World) markNonTrivial(c Entity) {
	if c.Index() < HiComponentID {
		w.nonTrivial.set(uint8(c.Index()))
	}
}
