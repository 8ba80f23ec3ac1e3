// Package filter provides playlists, search matching and the filter keys
// that drive the playback queue.
package filter

import (
	"github.com/osa030/rhythmical/internal/domain/song"
)

// Filter is a predicate over songs plus a key identifying it.
// Two filters with the same key select the same songs.
type Filter struct {
	Key       string
	Predicate song.Predicate
}

// Match reports whether the song passes the filter. A nil predicate passes everything.
func (f Filter) Match(s song.Song) bool {
	return f.Predicate == nil || f.Predicate(s)
}

// Playlist is a named, configurable subset of the catalog.
type Playlist interface {
	// Name returns the display name (also the first part of the filter key).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ValidateConfig decodes and validates the playlist settings.
	ValidateConfig(settings map[string]any) error
	// Match reports whether the song belongs to the playlist.
	Match(s song.Song) bool
}

// registry holds registered playlist factories keyed by kind.
var registry = make(map[string]func(name string) Playlist)

// Register registers a playlist factory.
func Register(kind string, factory func(name string) Playlist) {
	registry[kind] = factory
}

// GetRegistered returns all registered playlist factories.
func GetRegistered() map[string]func(name string) Playlist {
	return registry
}

// Key builds the filter key for a playlist name and search text.
func Key(playlistName, search string) string {
	return playlistName + "_" + search
}

// Make combines a playlist and search text into a Filter.
func Make(p Playlist, search string) Filter {
	chain := NewChain()
	chain.Add(p.Match)
	if search != "" {
		chain.Add(NewSearch(search).Match)
	}
	return Filter{
		Key:       Key(p.Name(), search),
		Predicate: chain.Predicate(),
	}
}
