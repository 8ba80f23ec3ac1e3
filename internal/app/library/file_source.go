package library

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// FileSourceConfig configures a YAML song list.
type FileSourceConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// fileDocument is the on-disk layout of a song list.
type fileDocument struct {
	Songs []Entry `yaml:"songs"`
}

// FileSource loads entries from a YAML song list written by SaveFile.
type FileSource struct {
	config FileSourceConfig
}

// NewFileSource creates a file source from its settings.
func NewFileSource(settings map[string]any) (*FileSource, error) {
	var config FileSourceConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	return &FileSource{config: config}, nil
}

// Load reads the song list.
func (s *FileSource) Load(_ context.Context) ([]Entry, error) {
	entries, err := LoadFile(s.config.Path)
	if err != nil {
		return nil, err
	}
	zlog.Debug().Msgf("library: loaded %d entries from %s", len(entries), s.config.Path)
	return entries, nil
}

// Name returns the source type.
func (s *FileSource) Name() string {
	return "file"
}

// LoadFile reads a YAML song list.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read song list")
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to parse song list %s", path)
	}
	for i, e := range doc.Songs {
		if e.ID == "" {
			return nil, errors.Newf("song list %s: entry %d has no id", path, i)
		}
	}
	return doc.Songs, nil
}

// SaveFile writes entries as a YAML song list.
func SaveFile(path string, entries []Entry) error {
	data, err := yaml.Marshal(fileDocument{Songs: entries})
	if err != nil {
		return errors.Wrap(err, "failed to encode song list")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write song list")
	}
	return nil
}
