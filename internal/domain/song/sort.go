package song

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortField is a column songs can be ordered by.
type SortField string

const (
	SortTitle    SortField = "title"
	SortGenre    SortField = "genre"
	SortArtist   SortField = "artist"
	SortAlbum    SortField = "album"
	SortDuration SortField = "duration"
	SortRating   SortField = "rating"
)

// DefaultSort is the order used when none is requested.
const DefaultSort = SortArtist

// SortFields lists the valid sort fields.
var SortFields = []SortField{SortTitle, SortGenre, SortArtist, SortAlbum, SortDuration, SortRating}

// ErrUnknownSortField is returned for a sort field outside SortFields.
var ErrUnknownSortField = errors.New("unknown sort field")

// ParseSortField parses a sort field name. Empty input yields DefaultSort.
func ParseSortField(name string) (SortField, error) {
	if name == "" {
		return DefaultSort, nil
	}
	f := SortField(strings.ToLower(name))
	if !slices.Contains(SortFields, f) {
		return "", errors.Wrapf(ErrUnknownSortField, "%q", name)
	}
	return f, nil
}

// Sort orders songs in place by field. Text fields use locale-aware
// collation. The sort is stable so equal songs keep catalog order.
func Sort(songs []Song, field SortField, desc bool) {
	var cmp func(a, b Song) int
	switch field {
	case SortDuration:
		cmp = func(a, b Song) int { return a.Duration - b.Duration }
	case SortRating:
		cmp = func(a, b Song) int { return a.Rating - b.Rating }
	default:
		key := textKey(field)
		c := collate.New(language.Und)
		cmp = func(a, b Song) int { return c.CompareString(key(a), key(b)) }
	}
	if desc {
		asc := cmp
		cmp = func(a, b Song) int { return asc(b, a) }
	}
	slices.SortStableFunc(songs, cmp)
}

func textKey(field SortField) func(Song) string {
	switch field {
	case SortTitle:
		return func(s Song) string { return s.Title }
	case SortGenre:
		return func(s Song) string { return s.Genre }
	case SortAlbum:
		return func(s Song) string { return s.Album }
	default:
		return func(s Song) string { return s.Artist }
	}
}

// TotalDuration sums the song lengths.
func TotalDuration(songs []Song) time.Duration {
	var total time.Duration
	for _, s := range songs {
		total += s.Length()
	}
	return total
}

// Summary renders a song count and total length like
// "12 songs, 1 days, 2 hours and 5 minutes". Days and hours are left out
// while they are zero.
func Summary(count int, total time.Duration) string {
	secs := int(total / time.Second)
	days := secs / (24 * 60 * 60)
	hours := secs / (60 * 60) % 24
	minutes := secs / 60 % 60

	var b strings.Builder
	fmt.Fprintf(&b, "%d songs, ", count)
	if days > 0 {
		fmt.Fprintf(&b, "%d days, ", days)
	}
	if days > 0 || hours > 0 {
		fmt.Fprintf(&b, "%d hours and ", hours)
	}
	fmt.Fprintf(&b, "%d minutes", minutes)
	return b.String()
}
