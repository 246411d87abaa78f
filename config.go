package kura

import (
	"github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"
)

// Config holds the tunables of a World.
type Config struct {
	// InitialCapacity is the number of entity records reserved up front.
	InitialCapacity int `config:"KURA_INITIAL_CAPACITY"`
	// Debug turns internal invariant checks and the exclusive write access
	// assertion of GetMut into panics.
	Debug bool `config:"KURA_DEBUG"`
	// LogLevel is a zerolog level name.
	LogLevel string `config:"KURA_LOG_LEVEL"`
}

// DefaultConfig returns the configuration used by NewWorld.
func DefaultConfig() Config {
	return Config{
		InitialCapacity: 1024,
		LogLevel:        "info",
	}
}

// ConfigFromEnv returns DefaultConfig overridden by the KURA_* environment
// variables that are set.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := config.FromEnv().To(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to load config from environment")
	}
	if cfg.InitialCapacity < 0 {
		return cfg, eris.Wrapf(ErrInvalidParameter, "KURA_INITIAL_CAPACITY must not be negative, got %d", cfg.InitialCapacity)
	}
	return cfg, nil
}
