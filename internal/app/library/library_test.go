package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/rhythmical/internal/domain/song"
	"github.com/osa030/rhythmical/internal/infra/config"
	"github.com/osa030/rhythmical/internal/infra/lastfm"
	"github.com/osa030/rhythmical/internal/infra/rhythmdb"
	"github.com/osa030/rhythmical/internal/infra/spotify"
)

func entry(id, title, artist string) Entry {
	return Entry{
		Song:     song.Song{ID: id, Title: title, Artist: artist, Album: "Album", Duration: 200, Rating: 3},
		Location: "/" + artist + "/" + title + ".mp3",
	}
}

type staticSource struct {
	name    string
	entries []Entry
	err     error
}

func (s *staticSource) Load(context.Context) ([]Entry, error) { return s.entries, s.err }
func (s *staticSource) Name() string                           { return s.name }

func TestFileSource_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "songs.yaml")
	entries := []Entry{entry("1", "So What", "Miles Davis"), entry("2", "Naima", "John Coltrane")}
	require.NoError(t, SaveFile(path, entries))

	source, err := NewFileSource(map[string]any{"path": path})
	require.NoError(t, err)
	assert.Equal(t, "file", source.Name())

	loaded, err := source.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entries, loaded)
}

func TestFileSource_Errors(t *testing.T) {
	_, err := NewFileSource(map[string]any{})
	assert.Error(t, err, "path is required")

	dir := t.TempDir()
	noID := filepath.Join(dir, "noid.yaml")
	require.NoError(t, os.WriteFile(noID, []byte("songs:\n  - title: x\n"), 0o644))
	_, err = LoadFile(noID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no id")

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestFromRhythmDB(t *testing.T) {
	parsed := []rhythmdb.Entry{
		{Title: "A", Artist: "X", Duration: 100, Rating: 5, Location: "/X/A.mp3"},
		{Title: "B", Artist: "Y", Rating: 9, Location: "/Y/B.mp3"},
	}

	entries := FromRhythmDB(parsed, "home-")
	require.Len(t, entries, 2)
	assert.Equal(t, "home-0", entries[0].ID)
	assert.Equal(t, "home-1", entries[1].ID)
	assert.Equal(t, "/X/A.mp3", entries[0].Location)
	assert.Equal(t, song.MaxRating, entries[1].Rating, "ratings are capped")
}

func TestRhythmDBSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rhythmdb.xml")
	require.NoError(t, os.WriteFile(path, []byte(`<?xml version="1.0"?>
<rhythmdb version="2.0">
  <entry type="song">
    <title>Blue in Green</title>
    <artist>Miles Davis</artist>
    <album>Kind of Blue</album>
    <duration>337</duration>
    <location>file:///music/Miles%20Davis/Blue%20in%20Green.flac</location>
  </entry>
</rhythmdb>`), 0o644))

	source, err := NewRhythmDBSource(map[string]any{"path": path, "location_prefix": "/music"})
	require.NoError(t, err)

	entries, err := source.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "0", entries[0].ID)
	assert.Equal(t, "/Miles Davis/Blue in Green.flac", entries[0].Location)

	_, err = NewRhythmDBSource(map[string]any{"path": path})
	assert.Error(t, err, "location_prefix is required")
}

type fakePlaylist struct {
	tracks []spotify.Track
	err    error
}

func (f *fakePlaylist) GetPlaylistTracks(context.Context, string) ([]spotify.Track, error) {
	return f.tracks, f.err
}

func TestSpotifySource(t *testing.T) {
	client := &fakePlaylist{tracks: []spotify.Track{
		{ID: "a", Name: "One", Artists: []string{"U2"}, Album: "Achtung Baby", Duration: 276 * time.Second, Popularity: 85, PreviewURL: "https://p.scdn.co/a"},
		{ID: "b", Name: "No Preview", Artists: []string{"U2"}, Popularity: 50},
	}}

	source, err := NewSpotifySource(client, map[string]any{"playlist_url": "spotify:playlist:x"})
	require.NoError(t, err)

	entries, err := source.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{
		Song: song.Song{
			ID: "spotify:a", Title: "One", Artist: "U2", Album: "Achtung Baby", Duration: 276, Rating: 4,
		},
		Location: "https://p.scdn.co/a",
	}, entries[0])

	_, err = NewSpotifySource(nil, map[string]any{"playlist_url": "x"})
	assert.Error(t, err)
}

func TestPopularityRating(t *testing.T) {
	tests := []struct {
		popularity int
		expected   int
	}{
		{popularity: -5, expected: 0},
		{popularity: 0, expected: 0},
		{popularity: 19, expected: 0},
		{popularity: 20, expected: 1},
		{popularity: 99, expected: 4},
		{popularity: 100, expected: 5},
		{popularity: 150, expected: 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, popularityRating(tt.popularity), "popularity %d", tt.popularity)
	}
}

func TestSourceChain(t *testing.T) {
	chain := NewSourceChain([]SourceWithMetadata{
		{Source: &staticSource{name: "file", entries: []Entry{entry("1", "A", "X"), entry("2", "B", "X")}}, DisplayName: "first"},
		{Source: &staticSource{name: "file", err: errors.New("boom")}, DisplayName: "broken"},
		{Source: &staticSource{name: "file", entries: []Entry{entry("2", "Other", "Y"), entry("3", "C", "Y")}}, DisplayName: "second"},
	})

	entries, err := chain.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "B", entries[1].Title, "first source wins duplicate ids")
	assert.Equal(t, "3", entries[2].ID)
	assert.Equal(t, "source_chain", chain.Name())
}

func TestSourceChain_AllFailed(t *testing.T) {
	chain := NewSourceChain([]SourceWithMetadata{
		{Source: &staticSource{name: "file", err: errors.New("boom")}, DisplayName: "broken"},
	})
	_, err := chain.Load(context.Background())
	assert.Error(t, err)
}

func TestNewSourceChainFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "songs.yaml")
	require.NoError(t, SaveFile(path, []Entry{entry("1", "A", "X")}))

	tests := []struct {
		name    string
		sources []config.SourceConfig
		wantErr string
	}{
		{name: "no sources", wantErr: "no library sources"},
		{
			name:    "unknown type",
			sources: []config.SourceConfig{{Type: "itunes"}},
			wantErr: "unsupported source type",
		},
		{
			name:    "spotify without client",
			sources: []config.SourceConfig{{Type: "spotify", Settings: map[string]any{"playlist_url": "x"}}},
			wantErr: "spotify credentials",
		},
		{
			name:    "file",
			sources: []config.SourceConfig{{Type: "file", DisplayName: "Saved", Settings: map[string]any{"path": path}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := NewSourceChainFromConfig(&config.LibraryConfig{Sources: tt.sources}, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			lib, err := Load(context.Background(), chain)
			require.NoError(t, err)
			assert.Equal(t, 1, lib.Len())
		})
	}
}

func TestLibrary(t *testing.T) {
	lib := New([]Entry{entry("1", "A", "X"), entry("2", "B", "Y"), entry("1", "Dup", "Z")})

	assert.Equal(t, 2, lib.Len())
	e, ok := lib.Get("1")
	require.True(t, ok)
	assert.Equal(t, "A", e.Title)
	_, ok = lib.Get("missing")
	assert.False(t, ok)

	songs, err := lib.FetchSongs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, []string{songs[0].ID, songs[1].ID})

	entries := lib.Entries()
	entries[0].Title = "mutated"
	e, _ = lib.Get("1")
	assert.Equal(t, "A", e.Title, "Entries returns a copy")
}

type fakeTags struct {
	track  map[string][]lastfm.Tag
	artist map[string][]lastfm.Tag
}

func (f *fakeTags) GetTopTags(_ context.Context, track, artist string, _ int) ([]lastfm.Tag, error) {
	tags, ok := f.track[artist+"/"+track]
	if !ok {
		return nil, errors.New("Track not found")
	}
	return tags, nil
}

func (f *fakeTags) GetArtistTopTags(_ context.Context, artist string, _ int) ([]lastfm.Tag, error) {
	return f.artist[artist], nil
}

func TestGenreEnricher(t *testing.T) {
	tags := &fakeTags{
		track:  map[string][]lastfm.Tag{"X/A": {{Name: "hip hop", Count: 100}}},
		artist: map[string][]lastfm.Tag{"Y": {{Name: "jazz", Count: 90}}},
	}
	withGenre := entry("3", "C", "Z")
	withGenre.Genre = "Rock"
	noArtist := entry("4", "D", "")
	unknown := entry("5", "E", "W")

	input := []Entry{entry("1", "A", "X"), entry("2", "B", "Y"), withGenre, noArtist, unknown}
	out := NewGenreEnricher(tags).Enrich(context.Background(), input)

	require.Len(t, out, 5)
	assert.Equal(t, "Hip Hop", out[0].Genre, "track tags")
	assert.Equal(t, "Jazz", out[1].Genre, "artist fallback")
	assert.Equal(t, "Rock", out[2].Genre, "existing genre kept")
	assert.Empty(t, out[3].Genre)
	assert.Empty(t, out[4].Genre)
	assert.Empty(t, input[0].Genre, "input is not modified")
}

func TestSync(t *testing.T) {
	existing := []Entry{entry("0", "A", "X"), entry("1", "B", "X"), entry("7", "Gone", "X")}
	rerated := entry("99", "A", "X")
	rerated.Rating = 5
	rerated.Location = "/moved/A.mp3"
	otherAlbum := entry("98", "B", "X")
	otherAlbum.Album = "Live"

	result := Sync(existing, []Entry{rerated, entry("97", "B", "X"), otherAlbum, entry("96", "New", "Y")})

	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 1, result.Removed)
	require.Len(t, result.Entries, 4)

	assert.Equal(t, "0", result.Entries[0].ID)
	assert.Equal(t, 5, result.Entries[0].Rating)
	assert.Equal(t, "/moved/A.mp3", result.Entries[0].Location)
	assert.Equal(t, "1", result.Entries[1].ID)
	assert.Equal(t, "8", result.Entries[2].ID, "new ids follow the largest existing id")
	assert.Equal(t, "9", result.Entries[3].ID)
}

type fakeChecker map[string]bool

func (f fakeChecker) Exists(_ context.Context, location string) (bool, error) {
	if location == "/error" {
		return false, errors.New("storage unavailable")
	}
	return f[location], nil
}

func TestValidate(t *testing.T) {
	a, b := entry("1", "A", "X"), entry("2", "B", "X")
	checker := fakeChecker{a.Location: true}

	report, err := Validate(context.Background(), []Entry{a, b}, checker)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	require.Len(t, report.Missing, 1)
	assert.Equal(t, "2", report.Missing[0].ID)

	broken := entry("3", "C", "X")
	broken.Location = "/error"
	_, err = Validate(context.Background(), []Entry{broken}, checker)
	assert.Error(t, err)
}
