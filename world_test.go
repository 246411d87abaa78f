package kura

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// --- Test Components ---
type Position struct{ X, Y float32 }
type Velocity struct{ DX, DY float32 }
type Health struct{ Current, Max int }
type Label struct{ Text string }
type Frozen struct{}

func newTestWorld(t testing.TB, opts ...WorldOption) *World {
	t.Helper()
	base := []WorldOption{WithLogger(zerolog.Nop()), WithDebug(true)}
	return NewWorld(append(base, opts...)...)
}

// newLoggedWorld returns a world that writes its log lines to the returned
// buffer.
func newLoggedWorld(t testing.TB) (*World, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	return newTestWorld(t, WithLogger(zerolog.New(buf).Level(zerolog.DebugLevel))), buf
}

// go test -run ^TestNewWorldBuiltins$ . -count 1
func TestNewWorldBuiltins(t *testing.T) {
	w := newTestWorld(t)
	for _, b := range []Entity{Wildcard, IsA, ChildOf, Identifier, Name} {
		assert.True(t, w.IsAlive(b), "builtin %s", b)
		require.ErrorIs(t, w.Delete(b), ErrInvalidParameter)
	}
	assert.True(t, w.ResolveComponentRecord(ChildOf.ID()).HasTrait(TraitExclusive))
	assert.True(t, w.ResolveComponentRecord(Identifier.ID()).HasTrait(TraitDontInherit))
	require.NotNil(t, w.GetTypeInfo(identifierName))
	assert.Equal(t, "string", w.GetTypeInfo(identifierName).Name)
	assert.Len(t, w.Tables(), 1)
}

// go test -run ^TestEntityRecycling$ . -count 1
func TestEntityRecycling(t *testing.T) {
	w := newTestWorld(t)
	e := w.NewEntity()
	require.True(t, w.IsAlive(e))
	require.GreaterOrEqual(t, e.Index(), uint32(firstUserIndex))

	require.NoError(t, w.Delete(e))
	assert.False(t, w.IsAlive(e))
	assert.False(t, w.Exists(e))
	require.ErrorIs(t, w.Delete(e), ErrDeadEntity)

	e2 := w.NewEntity()
	assert.Equal(t, e.Index(), e2.Index())
	assert.Equal(t, e.Generation()+1, e2.Generation())
	assert.False(t, w.IsAlive(e))
	assert.True(t, w.Exists(e))
	assert.Equal(t, e2, w.Alive(e.Index()))
}

// go test -run ^TestDeleteRemovesPairsWithTarget$ . -count 1
func TestDeleteRemovesPairsWithTarget(t *testing.T) {
	w := newTestWorld(t)
	likes := w.NewEntity()
	bob := w.NewEntity()
	alice := w.NewEntity()
	e := w.NewEntity()
	require.NoError(t, Set(w, e, Position{X: 1}))
	require.NoError(t, w.AddPair(e, likes, bob))
	require.NoError(t, w.AddPair(e, likes, alice))

	require.NoError(t, w.Delete(bob))
	assert.False(t, w.Owns(e, Pair(likes, bob)))
	assert.True(t, w.Owns(e, Pair(likes, alice)))
	assert.Equal(t, Position{X: 1}, *Get[Position](w, e))
	assert.Nil(t, w.ResolveComponentRecord(Pair(likes, bob)))

	require.NoError(t, w.Delete(likes))
	assert.False(t, w.Owns(e, Pair(Wildcard, alice)))
	assert.True(t, w.IsAlive(e))
	assert.Equal(t, Position{X: 1}, *Get[Position](w, e))
}

// go test -run ^TestDeleteComponentEntity$ . -count 1
func TestDeleteComponentEntity(t *testing.T) {
	w := newTestWorld(t)
	e := w.NewEntity()
	require.NoError(t, Set(w, e, Position{X: 3}))
	require.NoError(t, Set(w, e, Velocity{DX: 1}))
	pos, ok := ComponentFor[Position](w)
	require.True(t, ok)

	require.NoError(t, w.Delete(pos))
	assert.False(t, w.Has(e, pos.ID()))
	assert.Equal(t, Velocity{DX: 1}, *Get[Velocity](w, e))
	_, ok = ComponentFor[Position](w)
	assert.False(t, ok)

	// Registering again yields a fresh component.
	pos2 := RegisterComponent[Position](w)
	assert.NotEqual(t, pos, pos2)
	require.NoError(t, Set(w, e, Position{X: 4}))
	assert.Equal(t, Position{X: 4}, *Get[Position](w, e))
}

// go test -run ^TestDeleteCascadesToChildren$ . -count 1
func TestDeleteCascadesToChildren(t *testing.T) {
	w := newTestWorld(t)
	parent := w.NewEntity()
	child := w.NewEntity()
	grandchild := w.NewEntity()
	bystander := w.NewEntity()
	require.NoError(t, w.ChildOf(child, parent))
	require.NoError(t, w.ChildOf(grandchild, child))
	require.NoError(t, Set(w, bystander, Health{Current: 1}))

	assert.Equal(t, parent, w.Parent(child))
	require.NoError(t, w.Delete(parent))
	assert.False(t, w.IsAlive(child))
	assert.False(t, w.IsAlive(grandchild))
	assert.True(t, w.IsAlive(bystander))
}

// go test -run ^TestChildOfIsExclusive$ . -count 1
func TestChildOfIsExclusive(t *testing.T) {
	w := newTestWorld(t)
	p1 := w.NewEntity()
	p2 := w.NewEntity()
	e := w.NewEntity()
	require.NoError(t, w.ChildOf(e, p1))
	require.NoError(t, w.ChildOf(e, p2))
	assert.Equal(t, p2, w.Parent(e))
	assert.False(t, w.Owns(e, Pair(ChildOf, p1)))
	assert.Equal(t, 1, w.RelationshipCount(Pair(ChildOf, Wildcard), w.TableOf(e)))
}

// go test -run ^TestNames$ . -count 1
func TestNames(t *testing.T) {
	w := newTestWorld(t)
	bob, err := w.NewEntityNamed("bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", w.Name(bob))
	assert.Equal(t, bob, w.Lookup("bob"))
	assert.True(t, w.TableOf(bob).HasFlags(TableHasName))

	_, err = w.NewEntityNamed("bob")
	require.ErrorIs(t, err, ErrInvalidParameter)

	require.NoError(t, w.SetName(bob, "robert"))
	assert.Equal(t, Entity(0), w.Lookup("bob"))
	assert.Equal(t, bob, w.Lookup("robert"))

	require.NoError(t, w.SetName(bob, ""))
	assert.Equal(t, "", w.Name(bob))
	assert.Equal(t, Entity(0), w.Lookup("robert"))

	require.NoError(t, w.SetName(bob, "bob"))
	require.NoError(t, w.Delete(bob))
	assert.Equal(t, Entity(0), w.Lookup("bob"))
}

// go test -run ^TestReadonlyWindow$ . -count 1
func TestReadonlyWindow(t *testing.T) {
	w := newTestWorld(t)
	e := w.NewEntity()
	require.NoError(t, Set(w, e, Position{X: 1}))

	w.BeginReadonly()
	require.True(t, w.IsReadonly())
	require.ErrorIs(t, Set(w, e, Position{X: 2}), ErrAccessViolation)
	require.ErrorIs(t, w.Delete(e), ErrAccessViolation)
	assert.Equal(t, Entity(0), w.NewEntity())
	assert.Equal(t, Position{X: 1}, *Get[Position](w, e))
	assert.Panics(t, func() { GetMut[Position](w, e) })
	w.EndReadonly()

	assert.NotPanics(t, func() { GetMut[Position](w, e).X = 5 })
	assert.Equal(t, Position{X: 5}, *Get[Position](w, e))
}

// go test -run ^TestReadonlyWithoutDebug$ . -count 1
func TestReadonlyWithoutDebug(t *testing.T) {
	w := newTestWorld(t, WithDebug(false))
	e := w.NewEntity()
	require.NoError(t, Set(w, e, Position{X: 1}))
	w.BeginReadonly()
	defer w.EndReadonly()
	assert.NotPanics(t, func() { assert.NotNil(t, GetMut[Position](w, e)) })
}

// go test -run ^TestConcurrentReaders$ . -count 1
func TestConcurrentReaders(t *testing.T) {
	w := newTestWorld(t)
	base := w.NewEntity()
	require.NoError(t, Set(w, base, Health{Current: 7, Max: 7}))
	entities := make([]Entity, 1000)
	for i := range entities {
		e := w.NewEntity()
		require.NoError(t, Set(w, e, Position{X: float32(i)}))
		require.NoError(t, w.IsA(e, base))
		entities[i] = e
	}

	w.BeginReadonly()
	defer w.EndReadonly()
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			for i, e := range entities {
				if p := Get[Position](w, e); p == nil || p.X != float32(i) {
					return assert.AnError
				}
				if h := Get[Health](w, e); h == nil || h.Current != 7 {
					return assert.AnError
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

// go test -run ^TestStats$ . -count 1
func TestStats(t *testing.T) {
	w := newTestWorld(t)
	before := w.Stats()
	e := w.NewEntity()
	require.NoError(t, Set(w, e, Position{}))

	s := w.Stats()
	assert.Equal(t, before.Entities+2, s.Entities) // e and the Position component
	assert.Equal(t, before.Tables+1, s.Tables)
	assert.Greater(t, s.ComponentRecords, before.ComponentRecords)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component_records"`)
}

// go test -run ^TestMisuseIsLogged$ . -count 1
func TestMisuseIsLogged(t *testing.T) {
	w, buf := newLoggedWorld(t)
	e := w.NewEntity()
	require.NoError(t, w.Delete(e))
	buf.Reset()

	assert.Nil(t, w.GetID(e, Wildcard.ID()))
	assert.Contains(t, buf.String(), "not alive")
	assert.Contains(t, buf.String(), w.ID().String())

	buf.Reset()
	assert.Equal(t, -1, w.RelationshipCount(Wildcard.ID(), nil))
	assert.Contains(t, buf.String(), "RelationshipCount")

	// A plain miss is not misuse.
	live := w.NewEntity()
	RegisterComponent[Health](w)
	buf.Reset()
	assert.Nil(t, Get[Health](w, live))
	assert.Empty(t, buf.String())
}
