package kura

// recordFlags mark how an entity is referenced by ids.
type recordFlags uint8

const (
	// flagUsedAsID is set once the entity appears in an id, either plainly or
	// as one side of a pair. Deleting it then has to clean up references.
	flagUsedAsID recordFlags = 1 << iota
	// flagBuiltin protects builtin entities from deletion.
	flagBuiltin
)

// entityRecord holds where an entity lives.
type entityRecord struct {
	table      uint32 // id of the owning table
	row        int32  // position inside the table
	generation uint16 // current generation
	alive      bool
	flags      recordFlags
}

// entityIndex maps entity indices to their records. Freed indices are
// recycled through a stack, bumping their generation.
type entityIndex struct {
	records []entityRecord
	freeIDs []uint32
	alive   int
}

func newEntityIndex(capacity int) entityIndex {
	ix := entityIndex{
		records: make([]entityRecord, firstUserIndex, max(capacity, firstUserIndex)),
	}
	return ix
}

// get returns the record of e if e is alive.
func (ix *entityIndex) get(e Entity) *entityRecord {
	if uint64(e)&idFlagsMask != 0 {
		return nil
	}
	idx := e.Index()
	if int(idx) >= len(ix.records) {
		return nil
	}
	r := &ix.records[idx]
	if !r.alive || r.generation != e.Generation() {
		return nil
	}
	return r
}

// aliveAt returns the live entity at index, or 0.
func (ix *entityIndex) aliveAt(index uint32) Entity {
	if int(index) >= len(ix.records) {
		return 0
	}
	r := &ix.records[index]
	if !r.alive {
		return 0
	}
	return makeEntity(index, r.generation)
}

// reserve makes a reserved low index alive.
func (ix *entityIndex) reserve(index uint32) Entity {
	r := &ix.records[index]
	r.alive = true
	ix.alive++
	return makeEntity(index, r.generation)
}

// create pops a recycled index or appends a new one.
func (ix *entityIndex) create() Entity {
	var idx uint32
	if n := len(ix.freeIDs); n > 0 {
		idx = ix.freeIDs[n-1]
		ix.freeIDs = ix.freeIDs[:n-1]
	} else {
		idx = uint32(len(ix.records))
		ix.records = append(ix.records, entityRecord{})
	}
	r := &ix.records[idx]
	r.alive = true
	r.flags = 0
	ix.alive++
	return makeEntity(idx, r.generation)
}

// release kills e and bumps the generation of its index. Indices in the
// reserved range are not recycled.
func (ix *entityIndex) release(e Entity) {
	r := &ix.records[e.Index()]
	r.alive = false
	r.generation++
	r.table = 0
	r.row = -1
	r.flags = 0
	ix.alive--
	if e.Index() >= firstUserIndex {
		ix.freeIDs = append(ix.freeIDs, e.Index())
	}
}
