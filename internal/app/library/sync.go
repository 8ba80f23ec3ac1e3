package library

import (
	"strconv"
)

// SyncResult is the outcome of merging a fresh import into an existing list.
type SyncResult struct {
	Entries []Entry // existing ids preserved for matched songs
	Matched int
	Added   int
	Removed int
}

// songIndex groups entries by title; candidates are then compared on
// artist, album and duration.
type songIndex map[string][]Entry

func newSongIndex(entries []Entry) songIndex {
	idx := make(songIndex, len(entries))
	for _, e := range entries {
		idx[e.Title] = append(idx[e.Title], e)
	}
	return idx
}

func (idx songIndex) lookup(target Entry) (Entry, bool) {
	for _, e := range idx[target.Title] {
		if e.Artist == target.Artist && e.Album == target.Album && e.Duration == target.Duration {
			return e, true
		}
	}
	return Entry{}, false
}

// Sync merges incoming (typically a new rhythmdb import) into existing.
// Matched songs keep their existing id and take the incoming metadata and
// location, so ratings edited in Rhythmbox carry over. New songs get ids
// after the largest numeric existing id. Existing songs with no incoming
// match are dropped.
func Sync(existing, incoming []Entry) SyncResult {
	existingIdx := newSongIndex(existing)
	incomingIdx := newSongIndex(incoming)

	next := nextNumericID(existing)
	used := make(map[string]bool, len(existing))
	var result SyncResult

	for _, in := range incoming {
		e := in
		if match, ok := existingIdx.lookup(in); ok && !used[match.ID] {
			e.ID = match.ID
			used[match.ID] = true
			result.Matched++
		} else {
			e.ID = strconv.Itoa(next)
			next++
			result.Added++
		}
		result.Entries = append(result.Entries, e)
	}

	for _, ex := range existing {
		if _, ok := incomingIdx.lookup(ex); !ok {
			result.Removed++
		}
	}

	return result
}

func nextNumericID(entries []Entry) int {
	next := 0
	for _, e := range entries {
		if n, err := strconv.Atoi(e.ID); err == nil && n >= next {
			next = n + 1
		}
	}
	return next
}
