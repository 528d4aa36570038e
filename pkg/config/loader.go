// Package config loads service settings from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into cfg using `env` and `envDefault`
// struct tags. Slices are comma separated unless envSeparator says otherwise.
func Load(cfg any) error {
	return LoadWithPrefix(cfg, "")
}

// LoadWithPrefix is Load with prefix prepended to every variable name, so
// `env:"PRODUCT_COUNT"` with prefix "SEED_" reads SEED_PRODUCT_COUNT.
func LoadWithPrefix(cfg any, prefix string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: prefix}); err != nil {
		if prefix != "" {
			return fmt.Errorf("parse %s* config: %w", prefix, err)
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
