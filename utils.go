package kura

import "unsafe"

// memCopy copies size bytes from src to dst using built-in copy for performance.
func memCopy(dst, src unsafe.Pointer, size uintptr) {
	if size == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), size), unsafe.Slice((*byte)(src), size))
}

// growCap returns the capacity to grow a buffer of capacity have to hold at
// least need elements.
func growCap(have, need int) int {
	next := max(2*have, 8)
	return max(next, need)
}
