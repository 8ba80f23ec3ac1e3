package library

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/rhythmical/internal/domain/song"
	"github.com/osa030/rhythmical/internal/infra/rhythmdb"
)

// RhythmDBSourceConfig configures a Rhythmbox database source.
type RhythmDBSourceConfig struct {
	Path           string `mapstructure:"path" validate:"required"`
	LocationPrefix string `mapstructure:"location_prefix" validate:"required"`
	IDPrefix       string `mapstructure:"id_prefix"`
}

// RhythmDBSource reads entries straight from rhythmdb.xml.
type RhythmDBSource struct {
	config RhythmDBSourceConfig
}

// NewRhythmDBSource creates a rhythmdb source from its settings.
func NewRhythmDBSource(settings map[string]any) (*RhythmDBSource, error) {
	var config RhythmDBSourceConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	return &RhythmDBSource{config: config}, nil
}

// Load parses the database.
func (s *RhythmDBSource) Load(_ context.Context) ([]Entry, error) {
	parsed, err := rhythmdb.ParseFile(s.config.Path, s.config.LocationPrefix)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load rhythmdb %s", s.config.Path)
	}
	entries := FromRhythmDB(parsed, s.config.IDPrefix)
	zlog.Debug().Msgf("library: loaded %d entries from rhythmdb %s", len(entries), s.config.Path)
	return entries, nil
}

// Name returns the source type.
func (s *RhythmDBSource) Name() string {
	return "rhythmdb"
}

// FromRhythmDB converts parsed rhythmdb entries, numbering ids by position.
func FromRhythmDB(parsed []rhythmdb.Entry, idPrefix string) []Entry {
	entries := make([]Entry, 0, len(parsed))
	for i, p := range parsed {
		entries = append(entries, Entry{
			Song: song.Song{
				ID:       idPrefix + strconv.Itoa(i),
				Title:    p.Title,
				Artist:   p.Artist,
				Album:    p.Album,
				Genre:    p.Genre,
				Duration: p.Duration,
				Rating:   min(p.Rating, song.MaxRating),
			},
			Location: p.Location,
		})
	}
	return entries
}
