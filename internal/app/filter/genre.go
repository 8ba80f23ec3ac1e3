package filter

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/rhythmical/internal/domain/song"
)

// GenreConfig represents the settings of a GenrePlaylist.
type GenreConfig struct {
	Genres      []string `yaml:"genres" mapstructure:"genres" validate:"required,min=1,dive,required"`
	Description string   `yaml:"description" mapstructure:"description"`
}

// GenrePlaylist includes songs whose genre is one of the configured genres.
// Comparison ignores case and surrounding whitespace.
type GenrePlaylist struct {
	name        string
	description string
	genres      map[string]struct{}
}

func (p *GenrePlaylist) Name() string {
	return p.name
}

func (p *GenrePlaylist) Description() string {
	if p.description != "" {
		return p.description
	}
	names := make([]string, 0, len(p.genres))
	for g := range p.genres {
		names = append(names, g)
	}
	return "Songs in genres: " + strings.Join(names, ", ")
}

func (p *GenrePlaylist) ValidateConfig(settings map[string]any) error {
	var config GenreConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	p.genres = make(map[string]struct{}, len(config.Genres))
	for _, g := range config.Genres {
		p.genres[normalizeGenre(g)] = struct{}{}
	}
	p.description = config.Description
	return nil
}

func (p *GenrePlaylist) Match(s song.Song) bool {
	_, ok := p.genres[normalizeGenre(s.Genre)]
	return ok
}

func normalizeGenre(g string) string {
	return strings.ToLower(strings.TrimSpace(g))
}

func init() {
	Register("genre", func(name string) Playlist {
		return &GenrePlaylist{name: name}
	})
}
