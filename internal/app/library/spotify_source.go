package library

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/rhythmical/internal/domain/song"
	"github.com/osa030/rhythmical/internal/infra/spotify"
)

// PlaylistFetcher defines the Spotify operation the spotify source needs.
type PlaylistFetcher interface {
	GetPlaylistTracks(ctx context.Context, playlistURL string) ([]spotify.Track, error)
}

// SpotifySourceConfig configures a Spotify playlist source.
type SpotifySourceConfig struct {
	PlaylistURL string `mapstructure:"playlist_url" validate:"required"`
}

// SpotifySource exposes a playlist's tracks through their preview clips.
// Tracks without a preview URL are not playable and are skipped.
type SpotifySource struct {
	spotify PlaylistFetcher
	config  SpotifySourceConfig
}

// NewSpotifySource creates a spotify source from its settings.
func NewSpotifySource(client PlaylistFetcher, settings map[string]any) (*SpotifySource, error) {
	if client == nil {
		return nil, errors.New("spotify source requires spotify credentials")
	}
	var config SpotifySourceConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	return &SpotifySource{spotify: client, config: config}, nil
}

// Load fetches the playlist.
func (s *SpotifySource) Load(ctx context.Context) ([]Entry, error) {
	tracks, err := s.spotify.GetPlaylistTracks(ctx, s.config.PlaylistURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist tracks")
	}

	entries := make([]Entry, 0, len(tracks))
	skipped := 0
	for _, t := range tracks {
		if t.PreviewURL == "" {
			skipped++
			continue
		}
		entries = append(entries, Entry{
			Song: song.Song{
				ID:       "spotify:" + t.ID,
				Title:    t.Name,
				Artist:   t.Artist(),
				Album:    t.Album,
				Duration: int(t.Duration.Seconds()),
				Rating:   popularityRating(t.Popularity),
			},
			Location: t.PreviewURL,
		})
	}

	if skipped > 0 {
		zlog.Info().Msgf("library: skipped %d spotify tracks without preview", skipped)
	}
	return entries, nil
}

// Name returns the source type.
func (s *SpotifySource) Name() string {
	return "spotify"
}

// popularityRating maps Spotify popularity (0..100) onto 0..5 stars.
func popularityRating(popularity int) int {
	return min(max(popularity, 0)/20, song.MaxRating)
}
