package audio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOutput() *SimulatedOutput {
	return &SimulatedOutput{DefaultDuration: time.Second, Tick: 5 * time.Millisecond}
}

func TestSimulatedStream_EndsAfterDuration(t *testing.T) {
	var ended atomic.Int32
	s, err := fastOutput().Open(context.Background(), Media{SongID: "1", Duration: 50 * time.Millisecond}, func() {
		ended.Add(1)
	})
	require.NoError(t, err)

	// Opened paused.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), ended.Load())
	assert.Equal(t, time.Duration(0), s.Position())

	require.NoError(t, s.Play())
	require.Eventually(t, func() bool { return ended.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, s.Position())

	// Playing again after the end starts over.
	require.NoError(t, s.Play())
	require.Eventually(t, func() bool { return ended.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestSimulatedStream_PauseKeepsPosition(t *testing.T) {
	var ended atomic.Int32
	s, err := fastOutput().Open(context.Background(), Media{Duration: 200 * time.Millisecond}, func() {
		ended.Add(1)
	})
	require.NoError(t, err)

	require.NoError(t, s.Play())
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, s.Pause())

	pos := s.Position()
	assert.Greater(t, pos, time.Duration(0))
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, pos, s.Position())
	assert.Equal(t, int32(0), ended.Load())
}

func TestSimulatedStream_Restart(t *testing.T) {
	s, err := fastOutput().Open(context.Background(), Media{Duration: time.Minute}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Play())
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, s.Restart())
	assert.Less(t, s.Position(), 30*time.Millisecond)
}

func TestSimulatedStream_Seek(t *testing.T) {
	tests := []struct {
		name     string
		pos      time.Duration
		expected time.Duration
	}{
		{name: "within length", pos: 20 * time.Second, expected: 20 * time.Second},
		{name: "negative clamps to zero", pos: -time.Second, expected: 0},
		{name: "past the end clamps to length", pos: 2 * time.Minute, expected: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := fastOutput().Open(context.Background(), Media{Duration: time.Minute}, nil)
			require.NoError(t, err)

			// Paused streams stay paused at the new position.
			require.NoError(t, s.Seek(tt.pos))
			assert.Equal(t, tt.expected, s.Position())
		})
	}
}

func TestSimulatedStream_SeekNearEndFiresEnded(t *testing.T) {
	var ended atomic.Int32
	s, err := fastOutput().Open(context.Background(), Media{Duration: time.Minute}, func() {
		ended.Add(1)
	})
	require.NoError(t, err)

	require.NoError(t, s.Play())
	require.NoError(t, s.Seek(time.Minute-30*time.Millisecond))
	require.Eventually(t, func() bool { return ended.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSimulatedStream_CloseSuppressesEnded(t *testing.T) {
	var ended atomic.Int32
	s, err := fastOutput().Open(context.Background(), Media{Duration: 40 * time.Millisecond}, func() {
		ended.Add(1)
	})
	require.NoError(t, err)

	require.NoError(t, s.Play())
	require.NoError(t, s.Close())
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(0), ended.Load())
	assert.ErrorIs(t, s.Play(), ErrStreamClosed)
}

func TestSimulatedOutput_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fastOutput().Open(ctx, Media{}, nil)
	assert.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		path        string
		expected    Format
	}{
		{name: "mpeg content type", contentType: "audio/mpeg", path: "/x", expected: FormatMP3},
		{name: "flac content type", contentType: "audio/flac", path: "/x.mp3", expected: FormatFLAC},
		{name: "wav with params", contentType: "audio/wav; codecs=1", path: "", expected: FormatWAV},
		{name: "octet stream falls back to extension", contentType: "application/octet-stream", path: "/a/b.FLAC", expected: FormatFLAC},
		{name: "wav extension", contentType: "", path: "song.wav", expected: FormatWAV},
		{name: "ogg content type", contentType: "audio/ogg", path: "/x", expected: FormatOGG},
		{name: "ogg extension", contentType: "", path: "/a/b.ogg", expected: FormatOGG},
		{name: "unknown defaults to mp3", contentType: "", path: "song", expected: FormatMP3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectFormat(tt.contentType, tt.path))
		})
	}
}

func TestFetcher_Fetch(t *testing.T) {
	t.Run("http", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/missing" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "audio/flac")
			_, _ = w.Write([]byte("fLaC"))
		}))
		defer server.Close()

		f := NewFetcher(server.Client())
		loaded, err := f.Fetch(context.Background(), server.URL+"/song")
		require.NoError(t, err)
		assert.Equal(t, []byte("fLaC"), loaded.Data)
		assert.Equal(t, FormatFLAC, loaded.Format)

		_, err = f.Fetch(context.Background(), server.URL+"/missing")
		assert.Error(t, err)
	})

	t.Run("local file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "song.wav")
		require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))

		f := NewFetcher(nil)
		for _, source := range []string{path, "file://" + path} {
			loaded, err := f.Fetch(context.Background(), source)
			require.NoError(t, err)
			assert.Equal(t, FormatWAV, loaded.Format)
			assert.Equal(t, []byte("RIFF"), loaded.Data)
		}

		_, err := f.Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.mp3"))
		assert.Error(t, err)
	})
}
