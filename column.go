package kura

import (
	"reflect"
	"unsafe"

	"github.com/rotisserie/eris"
)

// column stores the values of one component for every row of a table. The
// backing array is a typed Go slice so the garbage collector can scan it;
// elements are addressed by base + row*stride.
type column struct {
	ti   *TypeInfo
	data reflect.Value
	base unsafe.Pointer
	len  int
}

func newColumn(ti *TypeInfo, capacity int) column {
	c := column{ti: ti}
	if capacity > 0 {
		c.reserve(capacity)
	}
	return c
}

func (c *column) cap() int {
	if !c.data.IsValid() {
		return 0
	}
	return c.data.Len()
}

// reserve makes room for at least n elements, keeping existing values.
func (c *column) reserve(n int) {
	have := c.cap()
	if have >= n {
		return
	}
	size := growCap(have, n)
	data := reflect.MakeSlice(reflect.SliceOf(c.ti.Type), size, size)
	if c.len > 0 {
		reflect.Copy(data, c.data.Slice(0, c.len))
	}
	c.data = data
	c.base = data.UnsafePointer()
}

// at returns a pointer to the element at row. Rows outside the column are a
// storage bug, never a lookup miss.
func (c *column) at(row int) unsafe.Pointer {
	if uint(row) >= uint(c.len) {
		panic(eris.Wrapf(ErrInternal, "row %d out of bounds for column %s of length %d", row, c.ti.Name, c.len))
	}
	return unsafe.Add(c.base, uintptr(row)*c.ti.Size)
}

// push appends a zero value and returns its row.
func (c *column) push() int {
	c.reserve(c.len + 1)
	c.len++
	return c.len - 1
}

// removeSwap moves the last element into row and shrinks the column.
func (c *column) removeSwap(row int) {
	last := c.len - 1
	if row < last {
		c.ti.copyValue(c.at(row), c.at(last))
	}
	c.ti.zeroValue(c.at(last))
	c.len--
}

// copyFrom copies src[srcRow] into c[dstRow]. Both columns hold the same type.
func (c *column) copyFrom(dstRow int, src *column, srcRow int) {
	c.ti.copyValue(c.at(dstRow), src.at(srcRow))
}
