package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	mu    sync.Mutex
	cache = make(map[reflect.Type]any)

	dotenvOnce sync.Once
)

// Load populates cfg from environment variables using `env` struct tags.
// A .env file in the working directory is loaded once per process if present;
// real environment variables take precedence over it.
//
// Results are cached per concrete struct type, so repeated loads of the same
// configuration type are cheap and observe a consistent snapshot. Use Reset
// to discard the cache, e.g. between tests that mutate the environment.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		// Missing .env is the common case in production.
		_ = godotenv.Load()
	})

	t := reflect.TypeOf(*cfg)

	mu.Lock()
	defer mu.Unlock()

	if cached, ok := cache[t]; ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrParsingConfig, err)
	}

	cache[t] = *cfg
	return nil
}

// MustLoad is Load but panics on error. Intended for use in main.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// Reset discards all cached configuration snapshots. The next Load of each
// type re-reads the environment.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cache = make(map[reflect.Type]any)
}
