package filter

import (
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrUnknownPlaylist is returned when a playlist name is not in the set.
var ErrUnknownPlaylist = errors.New("unknown playlist")

// Definition describes a playlist to build from the registry.
type Definition struct {
	Name     string
	Kind     string
	Settings map[string]any
}

// DefaultDefinitions returns the built-in playlists.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: "All", Kind: "rating", Settings: map[string]any{"min_rating": 0, "description": "All songs"}},
		{Name: "Best", Kind: "rating", Settings: map[string]any{"min_rating": 5, "description": "Rated five stars"}},
		{Name: "Great", Kind: "rating", Settings: map[string]any{"min_rating": 4, "description": "Rated four stars or more"}},
		{Name: "Good", Kind: "rating", Settings: map[string]any{"min_rating": 3, "description": "Rated three stars or more"}},
		{Name: "Unrated", Kind: "rating", Settings: map[string]any{"min_rating": 0, "max_rating": 0, "description": "Songs without a rating"}},
	}
}

// Set is an ordered collection of playlists. The first one is the default.
type Set struct {
	playlists []Playlist
}

// NewSet builds playlists from definitions using the registry.
// An empty definition list yields the built-in playlists.
func NewSet(defs []Definition) (*Set, error) {
	if len(defs) == 0 {
		defs = DefaultDefinitions()
	}

	s := &Set{playlists: make([]Playlist, 0, len(defs))}
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		key := strings.ToLower(def.Name)
		if _, dup := seen[key]; dup {
			return nil, errors.Newf("duplicate playlist name: %s", def.Name)
		}
		seen[key] = struct{}{}

		factory, ok := registry[def.Kind]
		if !ok {
			return nil, errors.Newf("unknown playlist kind %q for playlist %s", def.Kind, def.Name)
		}
		p := factory(def.Name)
		if err := p.ValidateConfig(def.Settings); err != nil {
			return nil, errors.Wrapf(err, "invalid settings for playlist %s", def.Name)
		}
		s.playlists = append(s.playlists, p)
	}

	zlog.Debug().Msgf("filter: %d playlists registered", len(s.playlists))
	return s, nil
}

// Playlists returns the playlists in order.
func (s *Set) Playlists() []Playlist {
	result := make([]Playlist, len(s.playlists))
	copy(result, s.playlists)
	return result
}

// Default returns the first playlist.
func (s *Set) Default() Playlist {
	return s.playlists[0]
}

// Lookup finds a playlist by name, ignoring case.
func (s *Set) Lookup(name string) (Playlist, bool) {
	for _, p := range s.playlists {
		if strings.EqualFold(p.Name(), name) {
			return p, true
		}
	}
	return nil, false
}

// Filter builds the Filter for a playlist name and search text.
// An empty name selects the default playlist.
func (s *Set) Filter(name, search string) (Filter, error) {
	p := s.Default()
	if name != "" {
		var ok bool
		if p, ok = s.Lookup(name); !ok {
			return Filter{}, errors.Wrapf(ErrUnknownPlaylist, "playlist %q", name)
		}
	}
	return Make(p, search), nil
}
