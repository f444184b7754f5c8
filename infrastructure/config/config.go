package config

import (
	"fmt"
	"sync"
)

var (
	mu      sync.Mutex
	current *Config
)

// Load reads the configuration once per process: dotenv files, then the
// environment, then per-environment defaults, then validation. Later calls
// return the same instance.
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		return current, nil
	}

	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	cfg, err := parse()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	current = cfg
	return cfg, nil
}

func IsLoaded() bool {
	mu.Lock()
	defer mu.Unlock()
	return current != nil
}

// Reset drops the loaded configuration so tests can load again
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = nil
}
