package library

import (
	"context"

	"github.com/osa030/rhythmical/internal/domain/song"
)

// Library is an immutable, id-indexed set of entries in load order.
type Library struct {
	entries []Entry
	byID    map[string]int
}

// New builds a library. For duplicate ids the first entry wins.
func New(entries []Entry) *Library {
	l := &Library{byID: make(map[string]int, len(entries))}
	for _, e := range entries {
		if _, dup := l.byID[e.ID]; dup {
			continue
		}
		l.byID[e.ID] = len(l.entries)
		l.entries = append(l.entries, e)
	}
	return l
}

// Load builds a library from a source.
func Load(ctx context.Context, source Source) (*Library, error) {
	entries, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}
	return New(entries), nil
}

// Get returns the entry with the given id.
func (l *Library) Get(id string) (Entry, bool) {
	i, ok := l.byID[id]
	if !ok {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Songs returns the song metadata of every entry in order.
func (l *Library) Songs() []song.Song {
	songs := make([]song.Song, len(l.entries))
	for i, e := range l.entries {
		songs[i] = e.Song
	}
	return songs
}

// FetchSongs returns Songs; it lets a library back a catalog in-process.
func (l *Library) FetchSongs(_ context.Context) ([]song.Song, error) {
	return l.Songs(), nil
}

// Entries returns a copy of the entries.
func (l *Library) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Library) Len() int {
	return len(l.entries)
}
