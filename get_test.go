package kura

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -run ^TestGetAcrossTableMove$ . -count 1
func TestGetAcrossTableMove(t *testing.T) {
	w := newTestWorld(t)
	e1 := w.NewEntity()
	require.NoError(t, Set(w, e1, Position{X: 1, Y: 2}))
	assert.Equal(t, Position{X: 1, Y: 2}, *Get[Position](w, e1))

	before := w.TableOf(e1)
	require.NoError(t, Set(w, e1, Velocity{DX: 0, DY: 1}))
	assert.NotSame(t, before, w.TableOf(e1))

	assert.Equal(t, Position{X: 1, Y: 2}, *Get[Position](w, e1))
	assert.Equal(t, Velocity{DX: 0, DY: 1}, *Get[Velocity](w, e1))

	RegisterComponent[Health](w)
	assert.Nil(t, Get[Health](w, e1))
}

// go test -run ^TestGetAddressMatchesColumn$ . -count 1
func TestGetAddressMatchesColumn(t *testing.T) {
	w := newTestWorld(t)
	pos := RegisterComponent[Position](w)
	entities := make([]Entity, 0, 16)
	for i := range 16 {
		e := w.NewEntity()
		require.NoError(t, Set(w, e, Position{X: float32(i)}))
		if i%2 == 0 {
			require.NoError(t, Set(w, e, Velocity{}))
		}
		entities = append(entities, e)
	}
	for _, e := range entities {
		r := w.entities.get(e)
		require.NotNil(t, r)
		table := w.tables[r.table]
		ci := w.ColumnIndexOf(table, pos.ID())
		require.GreaterOrEqual(t, ci, 0)
		col := &table.columns[ci]
		want := unsafe.Add(col.base, uintptr(r.row)*col.ti.Size)
		assert.True(t, want == w.GetID(e, pos.ID()), "address of %s", e)
	}
}

// go test -run ^TestGetFastAndSlowPathAgree$ . -count 1
func TestGetFastAndSlowPathAgree(t *testing.T) {
	w := newTestWorld(t)
	pos := RegisterComponent[Position](w)
	hp := RegisterComponent[Health](w)
	e := w.NewEntity()
	require.NoError(t, Set(w, e, Position{X: 9}))

	r := w.entities.get(e)
	table := w.tables[r.table]
	fast, ok := w.getLow(r, table, pos.ID())
	require.True(t, ok)
	slow, owned := w.getOwned(e, r, table, w.ResolveComponentRecord(pos.ID()))
	require.True(t, owned)
	assert.True(t, fast == slow)

	// Health was never used, so it has no record yet.
	require.Nil(t, w.ResolveComponentRecord(hp.ID()))
	assert.Nil(t, w.GetID(e, hp.ID()))
	_, err := w.EnsureComponentRecord(hp.ID())
	require.NoError(t, err)
	assert.Nil(t, w.GetID(e, hp.ID()))
	assert.True(t, w.GetID(e, pos.ID()) == fast)
}

// go test -run ^TestGetMutRoundTrip$ . -count 1
func TestGetMutRoundTrip(t *testing.T) {
	w := newTestWorld(t)
	e := w.NewEntity()
	require.NoError(t, Set(w, e, Health{Current: 5, Max: 10}))

	h := GetMut[Health](w, e)
	require.NotNil(t, h)
	h.Current = 8
	assert.Equal(t, Health{Current: 8, Max: 10}, *Get[Health](w, e))
}

// go test -run ^TestPointerComponentsSurviveMoves$ . -count 1
func TestPointerComponentsSurviveMoves(t *testing.T) {
	w := newTestWorld(t)
	a := w.NewEntity()
	b := w.NewEntity()
	require.NoError(t, Set(w, a, Label{Text: "a"}))
	require.NoError(t, Set(w, b, Label{Text: "b"}))
	require.NoError(t, Set(w, a, Position{}))
	assert.Equal(t, "a", Get[Label](w, a).Text)
	assert.Equal(t, "b", Get[Label](w, b).Text)
}

// go test -run ^TestGetTagHasNoData$ . -count 1
func TestGetTagHasNoData(t *testing.T) {
	w := newTestWorld(t)
	frozen := RegisterComponent[Frozen](w)
	e := w.NewEntity()
	require.NoError(t, w.Add(e, frozen.ID()))
	assert.True(t, w.Has(e, frozen.ID()))
	assert.Nil(t, w.GetID(e, frozen.ID()))
	assert.Equal(t, -1, w.ColumnIndexOf(w.TableOf(e), frozen.ID()))
	require.ErrorIs(t, w.SetID(e, frozen.ID(), nil), ErrNotAComponent)
}

// go test -run ^TestGetDeadEntity$ . -count 1
func TestGetDeadEntity(t *testing.T) {
	w := newTestWorld(t)
	e := w.NewEntity()
	require.NoError(t, Set(w, e, Position{X: 1}))
	require.NoError(t, w.Delete(e))
	assert.Nil(t, Get[Position](w, e))
	assert.Nil(t, GetMut[Position](w, e))

	// The recycled index must not expose the new entity to the stale handle.
	e2 := w.NewEntity()
	require.NoError(t, Set(w, e2, Position{X: 2}))
	assert.Nil(t, Get[Position](w, e))
	assert.Equal(t, Position{X: 2}, *Get[Position](w, e2))
}

// go test -run ^TestSetTypeMismatch$ . -count 1
func TestSetTypeMismatch(t *testing.T) {
	w := newTestWorld(t)
	pos := RegisterComponent[Position](w)
	e := w.NewEntity()
	v := Velocity{DX: 1}
	require.NoError(t, w.SetID(e, pos.ID(), unsafe.Pointer(&Position{X: 1})))
	require.ErrorIs(t, w.set(e, pos.ID(), reflect.TypeOf(v), unsafe.Pointer(&v)), ErrTypeMismatch)
	assert.Equal(t, Position{X: 1}, *Get[Position](w, e))
}
