// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// document is implemented by the top-level configuration types.
type document interface {
	overrideFromEnv()
	Validate() error
}

// load reads path into cfg, applies environment overrides and defaults,
// then validates.
func load(path string, cfg document) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	if err := defaults.Set(cfg); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config validation failed")
	}

	return nil
}

// seconds converts a whole number of seconds to a duration.
func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// validate runs struct validation.
func validate(v any) error {
	if err := validator.New().Struct(v); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
