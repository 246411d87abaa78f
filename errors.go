package kura

import "github.com/rotisserie/eris"

// Misuse errors. Lookup accessors log these and return a nil or sentinel
// result; structural operations return them wrapped with context.
var (
	ErrInvalidParameter = eris.New("invalid parameter")
	ErrDeadEntity       = eris.New("entity is not alive")
	ErrInvalidID        = eris.New("invalid id")
	ErrNotAComponent    = eris.New("id carries no data")
	ErrTypeMismatch     = eris.New("component type mismatch")
	ErrComponentInUse   = eris.New("component is already in use")
	ErrAccessViolation  = eris.New("world is in readonly mode")
)

// ErrInternal marks a broken storage invariant. It is only raised when the
// world runs with Config.Debug.
var ErrInternal = eris.New("internal error")

// misuse surfaces a caller error through the world logger.
func (w *World) misuse(err error, msg string) {
	w.logger.Error().Err(err).Msg(msg)
}

// assert panics with ErrInternal when cond is false and debug checks are on.
func (w *World) assert(cond bool, format string, args ...any) {
	if cond || !w.cfg.Debug {
		return
	}
	panic(eris.Wrapf(ErrInternal, format, args...))
}
