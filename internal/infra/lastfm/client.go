// Package lastfm provides a client for the Last.fm tag API.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Tag lookups keyed by method and subject.
	tagCache map[string][]Tag
	cacheMu  sync.RWMutex
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey string
}

// Tag represents a Last.fm tag.
type Tag struct {
	Name  string
	Count int // Tag count/frequency
}

// topTagsResponse is shared by track.getTopTags and artist.getTopTags.
type topTagsResponse struct {
	TopTags struct {
		Tag []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"tag"`
	} `json:"toptags"`
}

// apiError represents an error response from Last.fm API.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    "https://ws.audioscrobbler.com/2.0/",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tagCache:   make(map[string][]Tag),
	}, nil
}

// GetTopTags retrieves top tags for a track.
// Reference: https://www.last.fm/api/show/track.getTopTags
func (c *Client) GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]Tag, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}

	params := url.Values{}
	params.Set("method", "track.getTopTags")
	params.Set("artist", artistName)
	params.Set("track", trackName)
	return c.topTags(ctx, fmt.Sprintf("track:%s:%s", artistName, trackName), params, limit)
}

// GetArtistTopTags retrieves top tags for an artist.
// Reference: https://www.last.fm/api/show/artist.getTopTags
func (c *Client) GetArtistTopTags(ctx context.Context, artistName string, limit int) ([]Tag, error) {
	if artistName == "" {
		return nil, errors.New("artist name is required")
	}

	params := url.Values{}
	params.Set("method", "artist.getTopTags")
	params.Set("artist", artistName)
	return c.topTags(ctx, "artist:"+artistName, params, limit)
}

func (c *Client) topTags(ctx context.Context, cacheKey string, params url.Values, limit int) ([]Tag, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	c.cacheMu.RLock()
	cached, ok := c.tagCache[cacheKey]
	c.cacheMu.RUnlock()
	if ok {
		zlog.Debug().Msgf("lastfm: using cached tags for %s", cacheKey)
		return truncate(cached, limit), nil
	}

	var response topTagsResponse
	if err := c.call(ctx, params, &response); err != nil {
		return nil, err
	}

	tags := make([]Tag, 0, len(response.TopTags.Tag))
	for _, t := range response.TopTags.Tag {
		tags = append(tags, Tag{Name: t.Name, Count: t.Count})
	}

	c.cacheMu.Lock()
	c.tagCache[cacheKey] = tags
	c.cacheMu.Unlock()
	zlog.Debug().Msgf("lastfm: cached tags for %s (count: %d)", cacheKey, len(tags))

	return truncate(tags, limit), nil
}

// call performs a GET request and decodes the JSON body into out.
func (c *Client) call(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	params.Set("autocorrect", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Errorf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func truncate(tags []Tag, limit int) []Tag {
	if len(tags) > limit {
		return tags[:limit]
	}
	return tags
}
