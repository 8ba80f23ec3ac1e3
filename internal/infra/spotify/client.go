// Package spotify provides a read-only Spotify client for playlist-backed song sources.
package spotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// pageSize is the Spotify API maximum per playlist page.
const pageSize = 100

// Track is a playlist track reduced to what the song library needs.
type Track struct {
	ID         string
	Name       string
	Artists    []string
	Album      string
	Duration   time.Duration
	Popularity int // 0..100
	PreviewURL string
}

// Artist returns the artists joined for display.
func (t Track) Artist() string {
	return strings.Join(t.Artists, ", ")
}

// URL returns the Spotify web URL of the track.
func (t Track) URL() string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", t.ID)
}

// playlistPager is the subset of the Spotify API the client calls.
type playlistPager interface {
	GetPlaylistItems(ctx context.Context, playlistID spotify.ID, opts ...spotify.RequestOption) (*spotify.PlaylistItemPage, error)
}

// Client is a Spotify API client.
type Client struct {
	api        playlistPager
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// Scopes are the OAuth scopes the song server needs.
var Scopes = []string{spotifyauth.ScopePlaylistReadPrivate}

// New creates a new Spotify client that refreshes its access token as needed.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(Scopes...),
	)
	httpClient := auth.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	return newClient(spotify.New(httpClient), cfg.Market), nil
}

func newClient(api playlistPager, market string) *Client {
	if market == "" {
		market = "JP"
	}
	return &Client{
		api:        api,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// GetPlaylistTracks retrieves every track of a playlist, skipping episodes.
func (c *Client) GetPlaylistTracks(ctx context.Context, playlistURL string) ([]Track, error) {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return nil, errors.New("invalid playlist URL")
	}

	var tracks []Track
	for offset := 0; ; offset += pageSize {
		var page *spotify.PlaylistItemPage
		err := c.retry(ctx, func() error {
			p, err := c.api.GetPlaylistItems(ctx, spotify.ID(playlistID),
				spotify.Limit(pageSize),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				tracks = append(tracks, convertTrack(item.Track.Track))
			}
		}

		if len(page.Items) < pageSize {
			break
		}
	}

	zlog.Debug().Msgf("spotify: fetched %d tracks from playlist %s", len(tracks), playlistID)
	return tracks, nil
}

func convertTrack(t *spotify.FullTrack) Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}
	return Track{
		ID:         string(t.ID),
		Name:       t.Name,
		Artists:    artists,
		Album:      t.Album.Name,
		Duration:   time.Duration(t.Duration) * time.Millisecond,
		Popularity: int(t.Popularity),
		PreviewURL: t.PreviewURL,
	}
}

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry aborted")
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable reports whether err is a rate limit or a server error.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	input = strings.TrimSpace(input)
	if id, ok := strings.CutPrefix(input, "spotify:playlist:"); ok {
		return id
	}

	// https://open.spotify.com/playlist/ID or https://open.spotify.com/intl-XX/playlist/ID
	if strings.Contains(input, "open.spotify.com") {
		if _, rest, ok := strings.Cut(input, "/playlist/"); ok {
			id, _, _ := strings.Cut(rest, "?")
			return strings.TrimRight(id, "/")
		}
	}

	return input
}
