package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// LoadEnv overrides cfg with any BOOKSHOP_* variables present in the environment.
// Unset variables leave the current values in place.
func LoadEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// FromEnv returns the defaults overridden by the environment.
func FromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
