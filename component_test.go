package kura

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -run ^TestRegisterComponent$ . -count 1
func TestRegisterComponent(t *testing.T) {
	w := newTestWorld(t)
	pos := RegisterComponent[Position](w)
	assert.Equal(t, pos, RegisterComponent[Position](w))
	assert.Less(t, pos.Index(), uint32(HiComponentID))
	assert.True(t, w.IsAlive(pos))

	got, ok := ComponentFor[Position](w)
	require.True(t, ok)
	assert.Equal(t, pos, got)
	_, ok = ComponentFor[Velocity](w)
	assert.False(t, ok)

	ti := w.GetTypeInfo(pos.ID())
	require.NotNil(t, ti)
	assert.Equal(t, unsafe.Sizeof(Position{}), ti.Size)
	assert.Equal(t, unsafe.Alignof(Position{}), ti.Align)
	assert.Equal(t, pos, ti.Component)
	assert.Equal(t, pos, w.GetTypeID(pos.ID()))
	assert.True(t, ti.pointerFree)
	assert.False(t, newTypeInfo(0, reflect.TypeFor[Label]()).pointerFree)

	// Zero sized types are tags.
	frozen := RegisterComponent[Frozen](w)
	assert.Nil(t, w.GetTypeInfo(frozen.ID()))
	assert.Equal(t, Entity(0), w.GetTypeID(frozen.ID()))
}

// go test -run ^TestHighComponentIDs$ . -count 1
func TestHighComponentIDs(t *testing.T) {
	w := newTestWorld(t)
	byteType := reflect.TypeFor[byte]()
	components := make([]Entity, 0, HiComponentID+16)
	for i := range HiComponentID + 16 {
		components = append(components, w.RegisterType(reflect.ArrayOf(i+1, byteType)))
	}
	assert.Less(t, components[HiComponentID-2].Index(), uint32(HiComponentID))
	last := components[len(components)-1]
	assert.GreaterOrEqual(t, last.Index(), uint32(firstUserIndex))

	e := w.NewEntity()
	for i, c := range components {
		v := reflect.New(reflect.ArrayOf(i+1, byteType))
		v.Elem().Index(i).SetUint(uint64(i % 251))
		require.NoError(t, w.SetID(e, c.ID(), v.UnsafePointer()))
	}
	for i, c := range components {
		ptr := w.GetID(e, c.ID())
		require.NotNil(t, ptr, "component %d", i)
		data := unsafe.Slice((*byte)(ptr), i+1)
		assert.Equal(t, byte(i%251), data[i])
	}
	assert.Len(t, w.TableOf(e).Type(), len(components))
}

// go test -run ^TestSetType$ . -count 1
func TestSetType(t *testing.T) {
	w := newTestWorld(t)
	c := w.NewEntity()
	require.NoError(t, w.SetType(c, reflect.TypeFor[Health]()))
	got, ok := ComponentFor[Health](w)
	require.True(t, ok)
	assert.Equal(t, c, got)

	e := w.NewEntity()
	require.NoError(t, Set(w, e, Health{Current: 2}))
	assert.Equal(t, Health{Current: 2}, *Get[Health](w, e))
	require.ErrorIs(t, w.SetType(c, reflect.TypeFor[Position]()), ErrComponentInUse)

	dead := w.NewEntity()
	require.NoError(t, w.Delete(dead))
	require.ErrorIs(t, w.SetType(dead, reflect.TypeFor[Position]()), ErrDeadEntity)
}

// go test -run ^TestSetTypeUpdatesPinnedRecord$ . -count 1
func TestSetTypeUpdatesPinnedRecord(t *testing.T) {
	w := newTestWorld(t)
	c := w.NewEntity()
	cr, err := w.EnsureComponentRecord(c.ID())
	require.NoError(t, err)
	assert.Equal(t, StorageTag, cr.Storage())

	require.NoError(t, w.SetType(c, reflect.TypeFor[Velocity]()))
	assert.Equal(t, StorageColumn, cr.Storage())
	assert.Equal(t, reflect.TypeFor[Velocity](), cr.TypeInfo().Type)
}
