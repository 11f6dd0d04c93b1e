// Package config loads environment-driven configuration structs.
//
// Settings are declared as struct fields with `env` tags and populated from
// the process environment, with an optional .env file loaded once for local
// development.
package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrNilPointer is returned when Load receives a nil target.
	ErrNilPointer = errors.New("config target must be a non-nil pointer")
	// ErrParsingConfig wraps failures from the underlying env parser.
	ErrParsingConfig = errors.New("failed to parse config from environment")
)

var dotenvOnce sync.Once

// Load populates the struct from environment variables according to its
// `env` tags. The .env file, if present, is loaded into the environment on
// the first call; a missing file is not an error.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics on failure. Use it for configuration
// the application cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
