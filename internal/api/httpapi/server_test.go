package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/rhythmical/internal/app/library"
	"github.com/osa030/rhythmical/internal/domain/song"
	"github.com/osa030/rhythmical/internal/infra/storage"
)

type fakeResolver struct {
	contents map[string]storage.Content
	err      error
}

func (f *fakeResolver) Resolve(_ context.Context, location string) (storage.Content, error) {
	if f.err != nil {
		return storage.Content{}, f.err
	}
	c, ok := f.contents[location]
	if !ok {
		return storage.Content{}, errors.Wrapf(storage.ErrNotFound, "%s", location)
	}
	return c, nil
}

func (f *fakeResolver) Exists(_ context.Context, location string) (bool, error) {
	_, ok := f.contents[location]
	return ok, nil
}

func (f *fakeResolver) Name() string { return "fake" }

func testLibrary() *library.Library {
	return library.New([]library.Entry{
		{Song: song.Song{ID: "1", Title: "So What", Artist: "Miles Davis", Album: "Kind of Blue", Genre: "Jazz", Duration: 562, Rating: 5}, Location: "/remote.mp3"},
		{Song: song.Song{ID: "2", Title: "Naima", Artist: "John Coltrane", Duration: 261}, Location: "/local.mp3"},
		{Song: song.Song{ID: "3", Title: "Lost"}, Location: "/missing.mp3"},
	})
}

func newTestServer(t *testing.T, resolver storage.Resolver, metrics *Metrics) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewRouter(Options{
		Library: testLibrary(),
		Storage: resolver,
		Metrics: metrics,
	}))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestSongs(t *testing.T) {
	server := newTestServer(t, &fakeResolver{}, nil)

	resp, body := get(t, server.URL+"/api/songs")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var songs []song.Song
	require.NoError(t, json.Unmarshal([]byte(body), &songs))
	require.Len(t, songs, 3)
	assert.Equal(t, song.Song{
		ID: "1", Title: "So What", Artist: "Miles Davis", Album: "Kind of Blue", Genre: "Jazz", Duration: 562, Rating: 5,
	}, songs[0])
	assert.NotContains(t, body, "location")
}

func TestContents(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "naima.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("ID3-audio-bytes"), 0o644))

	resolver := &fakeResolver{contents: map[string]storage.Content{
		"/remote.mp3": {URL: "https://bucket.example.com/Music/remote.mp3?X-Amz-Signature=abc"},
		"/local.mp3":  {Path: audio},
	}}
	server := newTestServer(t, resolver, nil)

	tests := []struct {
		name        string
		path        string
		status      int
		contentType string
		body        string
	}{
		{
			name:        "presigned url",
			path:        "/api/songs/1/contents",
			status:      http.StatusOK,
			contentType: "text/plain; charset=utf-8",
			body:        "https://bucket.example.com/Music/remote.mp3?X-Amz-Signature=abc",
		},
		{
			name:        "local file",
			path:        "/api/songs/2/contents",
			status:      http.StatusOK,
			contentType: "audio/mpeg",
			body:        "ID3-audio-bytes",
		},
		{
			name:        "unknown song",
			path:        "/api/songs/42/contents",
			status:      http.StatusNotFound,
			contentType: "application/json",
			body:        `{"error":"Song with id 42 not found"}`,
		},
		{
			name:        "missing contents",
			path:        "/api/songs/3/contents",
			status:      http.StatusNotFound,
			contentType: "application/json",
			body:        `{"error":"Contents of song 3 not found"}`,
		},
		{
			name:        "unknown api route",
			path:        "/api/albums",
			status:      http.StatusNotFound,
			contentType: "application/json",
			body:        `{"error":"Not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, server.URL+tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), tt.contentType),
				"content type %q", resp.Header.Get("Content-Type"))
			assert.Equal(t, tt.body, strings.TrimSpace(body))
		})
	}
}

func TestContents_ResolveFailure(t *testing.T) {
	server := newTestServer(t, &fakeResolver{err: errors.New("credentials expired")}, nil)

	resp, body := get(t, server.URL+"/api/songs/1/contents")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Unable to resolve song contents"}`, body)
}

func TestMetrics(t *testing.T) {
	resolver := &fakeResolver{contents: map[string]storage.Content{"/remote.mp3": {URL: "https://x"}}}
	server := newTestServer(t, resolver, NewMetrics())

	get(t, server.URL+"/api/songs")
	get(t, server.URL+"/api/songs/1/contents")
	get(t, server.URL+"/api/songs/3/contents")

	resp, body := get(t, server.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `rhythmical_http_requests_total{method="GET",route="/api/songs",status="200"} 1`)
	assert.Contains(t, body, `rhythmical_http_requests_total{method="GET",route="/api/songs/{id}/contents",status="404"} 1`)
	assert.Contains(t, body, `rhythmical_content_resolutions_total{outcome="ok",storage="fake"} 1`)
	assert.Contains(t, body, `rhythmical_content_resolutions_total{outcome="error",storage="fake"} 1`)
	assert.Contains(t, body, "rhythmical_library_songs 3")
}

func TestStaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>player</html>"), 0o644))

	server := httptest.NewServer(NewRouter(Options{
		Library:   testLibrary(),
		Storage:   &fakeResolver{},
		StaticDir: dir,
	}))
	defer server.Close()

	resp, body := get(t, server.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "player")
}
