package kura

import (
	"reflect"
	"unsafe"
)

const (
	sparsePageBits = 12
	sparsePageSize = 1 << sparsePageBits
	sparsePageMask = sparsePageSize - 1
)

// sparseSet stores one component outside of tables. Entity indices map to a
// dense slot through paged arrays; values live in fixed size pages so their
// addresses survive growth. A nil ti makes it a membership-only set for tags.
type sparseSet struct {
	ti     *TypeInfo
	sparse [][]int32 // entity index -> dense slot + 1
	dense  []Entity
	pages  []reflect.Value
	bases  []unsafe.Pointer
}

func newSparseSet(ti *TypeInfo) *sparseSet {
	return &sparseSet{ti: ti}
}

func (s *sparseSet) slot(index uint32) int {
	p := int(index >> sparsePageBits)
	if p >= len(s.sparse) || s.sparse[p] == nil {
		return -1
	}
	return int(s.sparse[p][index&sparsePageMask]) - 1
}

func (s *sparseSet) setSlot(index uint32, slot int) {
	p := int(index >> sparsePageBits)
	if p >= len(s.sparse) {
		s.sparse = append(s.sparse, make([][]int32, p+1-len(s.sparse))...)
	}
	if s.sparse[p] == nil {
		s.sparse[p] = make([]int32, sparsePageSize)
	}
	s.sparse[p][index&sparsePageMask] = int32(slot + 1)
}

func (s *sparseSet) dataAt(slot int) unsafe.Pointer {
	return unsafe.Add(s.bases[slot>>sparsePageBits], uintptr(slot&sparsePageMask)*s.ti.Size)
}

func (s *sparseSet) find(e Entity) int {
	slot := s.slot(e.Index())
	if slot < 0 || s.dense[slot] != e {
		return -1
	}
	return slot
}

// has reports whether e is stored in the set.
func (s *sparseSet) has(e Entity) bool {
	return s.find(e) >= 0
}

// get returns the value stored for e, or nil if e is absent or the set
// stores a tag.
func (s *sparseSet) get(e Entity) unsafe.Pointer {
	slot := s.find(e)
	if slot < 0 || s.ti == nil {
		return nil
	}
	return s.dataAt(slot)
}

// emplace makes sure e has a slot and returns its value pointer. added is
// false when e was already present.
func (s *sparseSet) emplace(e Entity) (ptr unsafe.Pointer, added bool) {
	if slot := s.find(e); slot >= 0 {
		if s.ti == nil {
			return nil, false
		}
		return s.dataAt(slot), false
	}
	slot := len(s.dense)
	s.dense = append(s.dense, e)
	s.setSlot(e.Index(), slot)
	if s.ti == nil {
		return nil, true
	}
	if slot>>sparsePageBits >= len(s.pages) {
		page := reflect.MakeSlice(reflect.SliceOf(s.ti.Type), sparsePageSize, sparsePageSize)
		s.pages = append(s.pages, page)
		s.bases = append(s.bases, page.UnsafePointer())
	}
	return s.dataAt(slot), true
}

// remove deletes e, moving the last dense element into its slot.
func (s *sparseSet) remove(e Entity) bool {
	slot := s.find(e)
	if slot < 0 {
		return false
	}
	last := len(s.dense) - 1
	if slot < last {
		moved := s.dense[last]
		s.dense[slot] = moved
		s.setSlot(moved.Index(), slot)
		if s.ti != nil {
			s.ti.copyValue(s.dataAt(slot), s.dataAt(last))
		}
	}
	if s.ti != nil {
		s.ti.zeroValue(s.dataAt(last))
	}
	s.dense = s.dense[:last]
	s.sparse[e.Index()>>sparsePageBits][e.Index()&sparsePageMask] = 0
	return true
}

func (s *sparseSet) count() int {
	return len(s.dense)
}

// entities returns a copy of the stored entities in dense order.
func (s *sparseSet) entities() []Entity {
	out := make([]Entity, len(s.dense))
	copy(out, s.dense)
	return out
}
