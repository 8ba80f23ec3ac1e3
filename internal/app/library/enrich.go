package library

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/rhythmical/internal/infra/lastfm"
)

// TagLookup defines the Last.fm operations used for genre enrichment.
type TagLookup interface {
	GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.Tag, error)
	GetArtistTopTags(ctx context.Context, artistName string, limit int) ([]lastfm.Tag, error)
}

// GenreEnricher fills empty genres from Last.fm top tags.
type GenreEnricher struct {
	tags TagLookup
}

// NewGenreEnricher creates a genre enricher.
func NewGenreEnricher(tags TagLookup) *GenreEnricher {
	return &GenreEnricher{tags: tags}
}

// Enrich returns entries with empty genres filled in where a tag is found.
// Lookup failures leave the genre empty.
func (g *GenreEnricher) Enrich(ctx context.Context, entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	filled := 0
	for i, e := range entries {
		out[i] = e
		if e.Genre != "" || e.Artist == "" {
			continue
		}
		if ctx.Err() != nil {
			continue
		}
		if genre := g.lookup(ctx, e); genre != "" {
			out[i].Genre = genre
			filled++
		}
	}
	zlog.Info().Msgf("library: enriched %d genres", filled)
	return out
}

func (g *GenreEnricher) lookup(ctx context.Context, e Entry) string {
	if e.Title != "" {
		tags, err := g.tags.GetTopTags(ctx, e.Title, e.Artist, 1)
		if err != nil {
			zlog.Debug().Msgf("library: track tags failed for %s: %v", e.DisplayName(), err)
		} else if len(tags) > 0 {
			return formatGenre(tags[0].Name)
		}
	}

	tags, err := g.tags.GetArtistTopTags(ctx, e.Artist, 1)
	if err != nil {
		zlog.Debug().Msgf("library: artist tags failed for %s: %v", e.Artist, err)
		return ""
	}
	if len(tags) > 0 {
		return formatGenre(tags[0].Name)
	}
	return ""
}

// formatGenre capitalises each word of a tag ("hip hop" -> "Hip Hop").
func formatGenre(tag string) string {
	words := strings.Fields(tag)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
