package kura

import (
	"reflect"
	"unsafe"

	"github.com/rotisserie/eris"
)

// Hooks are lifecycle callbacks invoked with a pointer to the component data.
type Hooks struct {
	OnAdd    func(e Entity, ptr unsafe.Pointer)
	OnSet    func(e Entity, ptr unsafe.Pointer)
	OnRemove func(e Entity, ptr unsafe.Pointer)
}

// TypeInfo describes the layout of a data carrying component.
type TypeInfo struct {
	Component Entity
	Name      string
	Type      reflect.Type
	Size      uintptr
	Align     uintptr
	Hooks     Hooks

	pointerFree bool
}

func newTypeInfo(c Entity, t reflect.Type) *TypeInfo {
	return &TypeInfo{
		Component:   c,
		Name:        t.String(),
		Type:        t,
		Size:        t.Size(),
		Align:       uintptr(t.Align()),
		pointerFree: !hasPointers(t),
	}
}

// copyValue copies one element. Pointer free types are copied as raw memory,
// everything else goes through reflect so the write barrier sees the store.
func (ti *TypeInfo) copyValue(dst, src unsafe.Pointer) {
	if ti.pointerFree {
		memCopy(dst, src, ti.Size)
		return
	}
	reflect.NewAt(ti.Type, dst).Elem().Set(reflect.NewAt(ti.Type, src).Elem())
}

func (ti *TypeInfo) zeroValue(ptr unsafe.Pointer) {
	if ti.pointerFree {
		clear(unsafe.Slice((*byte)(ptr), ti.Size))
		return
	}
	reflect.NewAt(ti.Type, ptr).Elem().SetZero()
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Slice, reflect.String,
		reflect.Chan, reflect.Func, reflect.Interface:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

// typeRegistry maps Go types to component entities and component ids to
// their layout. Low ids resolve through a dense array.
type typeRegistry struct {
	lo     [HiComponentID]*TypeInfo
	hi     map[ID]*TypeInfo
	byType map[reflect.Type]Entity
	nextLo uint32
}

func newTypeRegistry() typeRegistry {
	return typeRegistry{
		hi:     make(map[ID]*TypeInfo),
		byType: make(map[reflect.Type]Entity, 16),
		nextLo: 1,
	}
}

func (r *typeRegistry) get(id ID) *TypeInfo {
	if uint64(id) < HiComponentID {
		return r.lo[id]
	}
	return r.hi[id]
}

func (r *typeRegistry) set(id ID, ti *TypeInfo) {
	if uint64(id) < HiComponentID {
		r.lo[id] = ti
		return
	}
	r.hi[id] = ti
}

func (r *typeRegistry) remove(id ID) {
	r.set(id, nil)
	if uint64(id) >= HiComponentID {
		delete(r.hi, id)
	}
}

// RegisterComponent registers T and returns its component entity. If T is
// already registered, it returns the existing entity. Zero sized types become
// tags and get no TypeInfo.
func RegisterComponent[T any](w *World) Entity {
	return w.RegisterType(reflect.TypeFor[T]())
}

// ComponentFor returns the component entity registered for T.
func ComponentFor[T any](w *World) (Entity, bool) {
	c, ok := w.types.byType[reflect.TypeFor[T]()]
	return c, ok
}

// RegisterType registers t and returns its component entity. Components get
// low ids while they last; after that they are allocated like any other
// entity and take the regular lookup path.
func (w *World) RegisterType(t reflect.Type) Entity {
	if c, ok := w.types.byType[t]; ok && w.IsAlive(c) {
		return c
	}
	var c Entity
	if w.types.nextLo < HiComponentID {
		c = w.reserveEntity(w.types.nextLo)
		w.types.nextLo++
	} else {
		c = w.NewEntity()
	}
	w.types.byType[t] = c
	if t.Size() > 0 {
		w.types.set(c.ID(), newTypeInfo(c, t))
	}
	w.logger.Debug().Stringer("component", c).Str("type", t.String()).Msg("component registered")
	return c
}

// SetType attaches a data type to an existing entity so it can be used as a
// component or as a typed relation. It fails once the entity is used as an id.
func (w *World) SetType(c Entity, t reflect.Type) error {
	if !w.IsAlive(c) {
		return eris.Wrapf(ErrDeadEntity, "cannot set type of %s", c)
	}
	if w.inUse(c) {
		return eris.Wrapf(ErrComponentInUse, "cannot set type of %s", c)
	}
	var ti *TypeInfo
	if t.Size() == 0 {
		w.types.remove(c.ID())
	} else {
		ti = newTypeInfo(c, t)
		w.types.set(c.ID(), ti)
		w.types.byType[t] = c
	}
	if cr := w.index.get(c.ID()); cr != nil {
		cr.ti = ti
		switch {
		case cr.kind.isSparse():
			cr.sparse = newSparseSet(ti)
		case ti != nil:
			cr.kind = StorageColumn
		default:
			cr.kind = StorageTag
		}
	}
	return nil
}

// SetHooks installs lifecycle hooks for a data carrying component.
func (w *World) SetHooks(c Entity, hooks Hooks) error {
	ti := w.types.get(c.ID())
	if ti == nil {
		return eris.Wrapf(ErrNotAComponent, "cannot set hooks on %s", c)
	}
	ti.Hooks = hooks
	return nil
}
