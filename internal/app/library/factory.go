package library

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/rhythmical/internal/infra/config"
)

// NewSourceChainFromConfig creates a source chain from configuration.
// spotify may be nil when no spotify source is configured.
func NewSourceChainFromConfig(cfg *config.LibraryConfig, spotify PlaylistFetcher) (*SourceChain, error) {
	if len(cfg.Sources) == 0 {
		return nil, errors.New("no library sources configured")
	}

	var sources []SourceWithMetadata
	for i, scfg := range cfg.Sources {
		var source Source
		var err error
		zlog.Debug().Msgf("library: creating source: index=%d type=%s settings=%+v", i+1, scfg.Type, scfg.Settings)
		switch scfg.Type {
		case "file":
			source, err = NewFileSource(scfg.Settings)
		case "rhythmdb":
			source, err = NewRhythmDBSource(scfg.Settings)
		case "spotify":
			source, err = NewSpotifySource(spotify, scfg.Settings)
		default:
			return nil, errors.Newf("unsupported source type: %s (source index %d)", scfg.Type, i)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create source (index %d, type %s)", i, scfg.Type)
		}

		displayName := scfg.DisplayName
		if displayName == "" {
			displayName = scfg.Type
		}
		sources = append(sources, SourceWithMetadata{Source: source, DisplayName: displayName})
		zlog.Info().Msgf("library: registered source: index=%d type=%s display_name=%s", i+1, scfg.Type, displayName)
	}

	return NewSourceChain(sources), nil
}
