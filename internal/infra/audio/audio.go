// Package audio provides audio outputs that load and play a playable source.
package audio

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrAudioUnavailable is returned when the build has no sound support.
var ErrAudioUnavailable = errors.New("audio output is not available in this build")

// ErrStreamClosed is returned by operations on a closed stream.
var ErrStreamClosed = errors.New("stream closed")

// Media describes what to load.
type Media struct {
	SongID   string
	Source   string        // Playable locator (URL or local path)
	Duration time.Duration // Expected length; used when the output cannot measure it
}

// Output loads media into streams.
type Output interface {
	// Open loads the media and returns a paused stream positioned at zero.
	// onEnded is called once each time the stream reaches its end; it is
	// never called after Close.
	Open(ctx context.Context, media Media, onEnded func()) (Stream, error)
}

// Stream is one loaded source.
type Stream interface {
	Play() error
	Pause() error
	// Restart seeks back to zero, keeping the play/pause state.
	Restart() error
	// Seek moves to pos, clamped to the stream length, keeping the play/pause state.
	Seek(pos time.Duration) error
	Position() time.Duration
	Close() error
}
