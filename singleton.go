package kura

import "github.com/rotisserie/eris"

// Singletons are components stored on their own component entity, so a
// world holds at most one value of each singleton type.

// SetSingleton stores v as the world wide T, registering T if needed. A
// zero sized T is added as a tag.
func SetSingleton[T any](w *World, v T) error {
	c := RegisterComponent[T](w)
	if w.types.get(c.ID()) == nil {
		return w.Add(c, c.ID())
	}
	if err := Set(w, c, v); err != nil {
		return eris.Wrapf(err, "cannot set singleton %s", c)
	}
	return nil
}

// GetSingleton returns the world wide T, or nil when it is not set.
func GetSingleton[T any](w *World) *T {
	c, ok := ComponentFor[T](w)
	if !ok {
		return nil
	}
	return (*T)(w.GetID(c, c.ID()))
}

// GetSingletonMut returns the world wide T for writing, or nil.
func GetSingletonMut[T any](w *World) *T {
	c, ok := ComponentFor[T](w)
	if !ok {
		return nil
	}
	return (*T)(w.GetMutID(c, c.ID()))
}

// HasSingleton reports whether the world wide T is set.
func HasSingleton[T any](w *World) bool {
	c, ok := ComponentFor[T](w)
	return ok && w.Owns(c, c.ID())
}

// RemoveSingleton drops the world wide T. Removing a singleton that is not
// set is a no-op.
func RemoveSingleton[T any](w *World) error {
	c, ok := ComponentFor[T](w)
	if !ok {
		return nil
	}
	return w.Remove(c, c.ID())
}
