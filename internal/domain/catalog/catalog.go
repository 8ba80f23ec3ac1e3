// Package catalog provides the immutable song catalog.
package catalog

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/rhythmical/internal/domain/song"
)

// SongFetcher fetches the full song list from the backend.
type SongFetcher interface {
	FetchSongs(ctx context.Context) ([]song.Song, error)
}

// FetchError is returned by Load when the song list cannot be fetched.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return "catalog fetch failed: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Catalog is an immutable id -> Song mapping.
// Ids keep the order in which they were first seen.
type Catalog struct {
	songs map[string]song.Song
	order []string
}

// New builds a catalog from a song list.
// A duplicate id replaces the earlier record but keeps its position.
func New(songs []song.Song) *Catalog {
	c := &Catalog{
		songs: make(map[string]song.Song, len(songs)),
		order: make([]string, 0, len(songs)),
	}
	for _, s := range songs {
		if _, exists := c.songs[s.ID]; !exists {
			c.order = append(c.order, s.ID)
		}
		c.songs[s.ID] = s
	}
	return c
}

// Load fetches all songs and builds a catalog from them.
func Load(ctx context.Context, fetcher SongFetcher) (*Catalog, error) {
	songs, err := fetcher.FetchSongs(ctx)
	if err != nil {
		return nil, &FetchError{Err: errors.Wrap(err, "failed to fetch songs")}
	}
	return New(songs), nil
}

// Get returns the song with the given id.
func (c *Catalog) Get(id string) (song.Song, bool) {
	if id == "" {
		return song.Song{}, false
	}
	s, ok := c.songs[id]
	return s, ok
}

// Has reports whether the id resolves to a song.
func (c *Catalog) Has(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// Filter returns the ids of all songs matching the predicate, in catalog order.
// A nil predicate matches every song.
func (c *Catalog) Filter(pred song.Predicate) []string {
	ids := make([]string, 0, len(c.order))
	for _, id := range c.order {
		if pred == nil || pred(c.songs[id]) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Songs returns all songs in catalog order.
func (c *Catalog) Songs() []song.Song {
	result := make([]song.Song, len(c.order))
	for i, id := range c.order {
		result[i] = c.songs[id]
	}
	return result
}

// IDs returns all ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.order))
	copy(ids, c.order)
	return ids
}

// Len returns the number of songs.
func (c *Catalog) Len() int {
	return len(c.order)
}
