package kura

import "github.com/rs/zerolog"

// WorldOption changes how a World is set up by NewWorld.
type WorldOption func(*World)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) WorldOption {
	return func(w *World) {
		w.cfg = cfg
	}
}

// WithInitialCapacity sets the number of entity records reserved up front.
func WithInitialCapacity(capacity int) WorldOption {
	return func(w *World) {
		w.cfg.InitialCapacity = capacity
	}
}

// WithDebug enables internal invariant checks.
func WithDebug(debug bool) WorldOption {
	return func(w *World) {
		w.cfg.Debug = debug
	}
}

// WithLogger makes the world log through logger instead of the global
// zerolog logger.
func WithLogger(logger zerolog.Logger) WorldOption {
	return func(w *World) {
		w.logger = logger
		w.customLogger = true
	}
}
