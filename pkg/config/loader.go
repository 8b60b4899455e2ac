package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Validator is implemented by configuration structs that check their own
// invariants after parsing.
type Validator interface {
	Validate() error
}

// Load parses environment variables into a new T using its `env` tags and,
// when *T implements Validator, validates the result.
func Load[T any](opts ...env.Options) (*T, error) {
	cfg := new(T)

	var o env.Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if err := env.ParseWithOptions(cfg, o); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if v, ok := any(cfg).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validate config: %w", err)
		}
	}
	return cfg, nil
}
