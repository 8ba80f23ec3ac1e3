package filter

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/rhythmical/internal/domain/song"
)

// RatingConfig represents the settings of a RatingPlaylist.
// A nil MaxRating means no upper bound; an explicit 0 selects unrated songs only.
type RatingConfig struct {
	MinRating   int    `yaml:"min_rating" mapstructure:"min_rating" validate:"gte=0,lte=5"`
	MaxRating   *int   `yaml:"max_rating" mapstructure:"max_rating" default:"-" validate:"omitempty,gte=0,lte=5"`
	Description string `yaml:"description" mapstructure:"description" default:"Songs within a rating range"`
}

// RatingPlaylist includes songs whose rating lies in [min, max].
type RatingPlaylist struct {
	name   string
	config *RatingConfig
}

func (p *RatingPlaylist) Name() string {
	return p.name
}

func (p *RatingPlaylist) Description() string {
	if p.config == nil {
		return "All songs"
	}
	return p.config.Description
}

func (p *RatingPlaylist) ValidateConfig(settings map[string]any) error {
	var config RatingConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &config,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	if config.MaxRating == nil {
		maxRating := song.MaxRating
		config.MaxRating = &maxRating
	}
	if config.MinRating > *config.MaxRating {
		return errors.New("min_rating cannot be greater than max_rating")
	}

	p.config = &config
	zlog.Debug().Msgf("rating playlist %q config: min=%d max=%d", p.name, config.MinRating, *config.MaxRating)
	return nil
}

func (p *RatingPlaylist) Match(s song.Song) bool {
	// Unconfigured playlists include everything.
	if p.config == nil {
		return true
	}
	if s.Rating < p.config.MinRating {
		return false
	}
	if p.config.MaxRating != nil && s.Rating > *p.config.MaxRating {
		return false
	}
	return true
}

func init() {
	Register("rating", func(name string) Playlist {
		return &RatingPlaylist{name: name}
	})
}
