package playback

import "github.com/cockroachdb/errors"

// Errors
var (
	ErrUnknownSong = errors.New("unknown song")
	ErrClosed      = errors.New("coordinator closed")
	ErrNoSong      = errors.New("no song selected")
	ErrNotLoaded   = errors.New("song is not loaded yet")
)

// SourceResolutionError reports that a selected song could not be loaded.
// Playback stays paused on the song; it is not skipped.
type SourceResolutionError struct {
	SongID string
	Err    error
}

func (e *SourceResolutionError) Error() string {
	return "failed to load source for song " + e.SongID + ": " + e.Err.Error()
}

func (e *SourceResolutionError) Unwrap() error {
	return e.Err
}
