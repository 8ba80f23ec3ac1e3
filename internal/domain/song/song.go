// Package song provides the Song domain entity.
package song

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// MaxRating is the highest rating a song can carry.
const MaxRating = 5

// Song represents a single entry of the music library.
// Songs are immutable once loaded.
type Song struct {
	ID       string `json:"id" yaml:"id"`             // Opaque unique identifier
	Title    string `json:"title" yaml:"title"`       // Song title
	Artist   string `json:"artist" yaml:"artist"`     // Artist name
	Album    string `json:"album" yaml:"album"`       // Album name
	Genre    string `json:"genre" yaml:"genre"`       // Genre
	Duration int    `json:"duration" yaml:"duration"` // Duration in seconds
	Rating   int    `json:"rating" yaml:"rating"`     // Rating 0-5 (0 = unrated)
}

// Predicate reports whether a song is included by a filter.
type Predicate func(s Song) bool

// Length returns the song duration as a time.Duration.
func (s Song) Length() time.Duration {
	return time.Duration(s.Duration) * time.Second
}

// DisplayName returns "artist - title", or just the title without an artist.
func (s Song) DisplayName() string {
	if s.Artist == "" {
		return s.Title
	}
	return s.Artist + " - " + s.Title
}

// FormatDuration renders seconds as m:ss.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// ParseDuration parses "m:ss", "h:mm:ss" or plain seconds into seconds.
func ParseDuration(text string) (int, error) {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) > 3 {
		return 0, errors.Newf("invalid duration %q", text)
	}
	total := 0
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || (i > 0 && n >= 60) {
			return 0, errors.Newf("invalid duration %q", text)
		}
		total = total*60 + n
	}
	return total, nil
}

// Stars renders a rating as filled and empty stars.
func Stars(rating int) string {
	rating = min(max(rating, 0), MaxRating)
	return strings.Repeat("★", rating) + strings.Repeat("☆", MaxRating-rating)
}
