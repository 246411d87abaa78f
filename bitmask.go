package kura

// bitmask256 is a set of low component ids. The world uses it to remember
// which low ids need more than the direct column lookup of a table.
type bitmask256 [4]uint64

// set enables the bit corresponding to the given id.
func (m *bitmask256) set(bit uint8) {
	i := bit >> 6 // (bit / 64) to find the uint64 index
	o := bit & 63 // (bit % 64) to find the bit offset
	m[i] |= uint64(1) << uint64(o)
}

// unset disables the bit corresponding to the given id.
func (m *bitmask256) unset(bit uint8) {
	i := bit >> 6
	o := bit & 63
	m[i] &= ^(uint64(1) << uint64(o))
}

// has checks if a specific bit is set in the mask.
func (m *bitmask256) has(bit uint8) bool {
	i := bit >> 6
	o := bit & 63
	return (m[i] & (uint64(1) << uint64(o))) != 0
}
