// Package library assembles the server's song library from configured sources.
package library

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/rhythmical/internal/domain/song"
)

// Entry is a song plus where its audio lives. Location is interpreted by
// the configured storage backend: a relative path, an object key or a URL.
type Entry struct {
	song.Song `yaml:",inline"`
	Location  string `yaml:"location"`
}

// Source is a provider of library entries.
type Source interface {
	// Load returns every entry the source knows about.
	Load(ctx context.Context) ([]Entry, error)

	// Name returns the source type (used in config).
	Name() string
}

// decodeSettings decodes a settings map into cfg, applies defaults and validates.
func decodeSettings(settings map[string]any, cfg any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create settings decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(cfg); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
