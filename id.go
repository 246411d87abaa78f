package kura

import "fmt"

// Entity is a unique identifier for an object in the World. The low 32 bits
// hold the dense index, bits 32..47 hold a generation counter that is bumped
// every time the index is recycled, so a stale handle never aliases a new
// entity until the generation wraps.
type Entity uint64

// ID identifies something an entity can have: a component, a tag or a
// relationship pair. A plain ID is the Entity of the component itself.
type ID uint64

const (
	// HiComponentID is the low-id threshold. Component entities registered
	// through the type registry occupy indices below it and take the fast
	// lookup path.
	HiComponentID = 256

	indexMask      = uint64(0xFFFFFFFF)
	generationMask = uint64(0xFFFF) << 32
	idFlagsMask    = uint64(0xFF) << 56
	pairFlag       = uint64(1) << 63
	pairFirstMask  = uint64(0x7FFFFFFF) << 32
)

// Builtin entities. Their indices follow the component range.
const (
	// Wildcard matches any relation or target in a pair.
	Wildcard Entity = HiComponentID + iota
	// IsA is the inheritance relationship: (IsA, Base).
	IsA
	// ChildOf is the exclusive hierarchy relationship: (ChildOf, Parent).
	ChildOf
	// Identifier is the relation used to store names: (Identifier, Name).
	Identifier
	// Name is the target of the name pair and carries a string.
	Name
)

// firstUserIndex is the index of the first entity created with NewEntity.
const firstUserIndex = HiComponentID + 32

// Precomputed hot pairs.
const (
	isaWildcard     = ID(pairFlag | uint64(IsA)<<32 | uint64(Wildcard))
	childOfWildcard = ID(pairFlag | uint64(ChildOf)<<32 | uint64(Wildcard))
	identifierName  = ID(pairFlag | uint64(Identifier)<<32 | uint64(Name))
)

func makeEntity(index uint32, generation uint16) Entity {
	return Entity(uint64(generation)<<32 | uint64(index))
}

// Index returns the dense index of the entity.
func (e Entity) Index() uint32 {
	return uint32(uint64(e) & indexMask)
}

// Generation returns the recycle counter of the entity.
func (e Entity) Generation() uint16 {
	return uint16((uint64(e) & generationMask) >> 32)
}

// ID returns the entity as a plain component id.
func (e Entity) ID() ID {
	return ID(e)
}

func (e Entity) String() string {
	if gen := e.Generation(); gen != 0 {
		return fmt.Sprintf("#%d.v%d", e.Index(), gen)
	}
	return fmt.Sprintf("#%d", e.Index())
}

// Pair encodes the relationship (rel, tgt). Generations are not part of a
// pair; both sides are resolved to the live entity at their index.
func Pair(rel, tgt Entity) ID {
	return ID(pairFlag | (uint64(rel.Index())<<32)&pairFirstMask | uint64(tgt.Index()))
}

// IsPair reports whether id encodes a relationship pair.
func (id ID) IsPair() bool {
	return uint64(id)&pairFlag != 0
}

// HasFlags reports whether any of the id flag bits is set.
func (id ID) HasFlags() bool {
	return uint64(id)&idFlagsMask != 0
}

// First returns the relation index of a pair.
func (id ID) First() uint32 {
	return uint32((uint64(id) & pairFirstMask) >> 32)
}

// Second returns the target index of a pair.
func (id ID) Second() uint32 {
	return uint32(uint64(id) & indexMask)
}

// IsWildcard reports whether id matches more than one concrete id.
func (id ID) IsWildcard() bool {
	if id == Wildcard.ID() {
		return true
	}
	if !id.IsPair() {
		return false
	}
	return id.First() == Wildcard.Index() || id.Second() == Wildcard.Index()
}

// Entity returns the plain id as an entity. It is meaningless for pairs.
func (id ID) Entity() Entity {
	return Entity(id)
}

func (id ID) String() string {
	if id.IsPair() {
		return fmt.Sprintf("(%d,%d)", id.First(), id.Second())
	}
	return Entity(id).String()
}

// idMatches reports whether the concrete id is matched by pattern, which may
// contain wildcards.
func idMatches(pattern, id ID) bool {
	if pattern == id {
		return true
	}
	if !pattern.IsWildcard() || !pattern.IsPair() || !id.IsPair() {
		return pattern == Wildcard.ID()
	}
	w := Wildcard.Index()
	return (pattern.First() == w || pattern.First() == id.First()) &&
		(pattern.Second() == w || pattern.Second() == id.Second())
}
