package filter

import (
	"regexp"

	"github.com/osa030/rhythmical/internal/domain/song"
)

// Search matches songs against free-text input.
// The text is a case-insensitive regular expression; text that does not
// compile is matched literally instead.
type Search struct {
	text string
	re   *regexp.Regexp
}

// NewSearch compiles the search text.
func NewSearch(text string) *Search {
	re, err := regexp.Compile("(?i)" + text)
	if err != nil {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(text))
	}
	return &Search{text: text, re: re}
}

// Text returns the raw search text.
func (s *Search) Text() string {
	return s.text
}

// Match reports whether title, artist, album or genre matches.
func (s *Search) Match(sg song.Song) bool {
	if s.text == "" {
		return true
	}
	return s.re.MatchString(sg.Title) ||
		s.re.MatchString(sg.Artist) ||
		s.re.MatchString(sg.Album) ||
		s.re.MatchString(sg.Genre)
}
