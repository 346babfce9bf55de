package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// New parses environment variables into a T. Every nested struct contributes its own
// variables, so a binary picks the concerns it needs by composing them.
func New[T any]() (T, error) {
	cfg, err := env.ParseAs[T]()
	if err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}
