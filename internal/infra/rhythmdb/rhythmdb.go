// Package rhythmdb reads Rhythmbox's rhythmdb.xml song database.
package rhythmdb

import (
	"encoding/xml"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// Entry is one song entry of the database.
type Entry struct {
	Title    string
	Genre    string
	Artist   string
	Album    string
	Duration int // seconds
	Rating   int
	Location string // decoded, with the library prefix removed
}

type xmlEntry struct {
	Type     string `xml:"type,attr"`
	Title    string `xml:"title"`
	Genre    string `xml:"genre"`
	Artist   string `xml:"artist"`
	Album    string `xml:"album"`
	Duration string `xml:"duration"`
	Rating   string `xml:"rating"`
	Location string `xml:"location"`
}

// ParseFile parses the database at path.
func ParseFile(path, locationPrefix string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open rhythmdb file")
	}
	defer f.Close()
	return Parse(f, locationPrefix)
}

// Parse reads all song entries. Locations must start with
// "file://" + locationPrefix; the remainder is percent-decoded.
// Non-song entries (podcasts, radio) are skipped.
func Parse(r io.Reader, locationPrefix string) ([]Entry, error) {
	prefix := "file://" + locationPrefix
	decoder := xml.NewDecoder(r)

	var entries []Entry
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read rhythmdb")
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "entry" {
			continue
		}

		var raw xmlEntry
		if err := decoder.DecodeElement(&raw, &start); err != nil {
			return nil, errors.Wrap(err, "failed to decode entry")
		}
		if raw.Type != "song" {
			continue
		}

		entry, err := convert(raw, prefix)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d (%s)", len(entries), raw.Title)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func convert(raw xmlEntry, prefix string) (Entry, error) {
	duration, err := parseInt(raw.Duration)
	if err != nil {
		return Entry{}, errors.Wrap(err, "invalid duration")
	}
	rating, err := parseInt(raw.Rating)
	if err != nil {
		return Entry{}, errors.Wrap(err, "invalid rating")
	}

	if !strings.HasPrefix(raw.Location, prefix) {
		return Entry{}, errors.Newf("location %s does not start with %s", raw.Location, prefix)
	}
	location, err := url.PathUnescape(raw.Location[len(prefix):])
	if err != nil {
		return Entry{}, errors.Wrap(err, "invalid location encoding")
	}

	return Entry{
		Title:    raw.Title,
		Genre:    raw.Genre,
		Artist:   raw.Artist,
		Album:    raw.Album,
		Duration: duration,
		Rating:   rating,
		Location: location,
	}, nil
}

// parseInt parses a non-negative integer; empty means zero.
// Ratings may be written as floats ("4.0").
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n := 0
	for i, c := range s {
		if c == '.' {
			if strings.Trim(s[i+1:], "0") != "" {
				return 0, errors.Newf("not an integer: %q", s)
			}
			break
		}
		if c < '0' || c > '9' {
			return 0, errors.Newf("not an integer: %q", s)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
