//go:build !((linux && cgo) || windows || darwin)

package audio

import "context"

// Available reports whether this build can play sound.
// Sound needs cgo on linux.
const Available = false

// SpeakerOutput is unavailable without cgo.
type SpeakerOutput struct{}

// NewSpeakerOutput always fails in this build.
func NewSpeakerOutput(fetcher *Fetcher) (*SpeakerOutput, error) {
	return nil, ErrAudioUnavailable
}

func (o *SpeakerOutput) Open(ctx context.Context, media Media, onEnded func()) (Stream, error) {
	return nil, ErrAudioUnavailable
}
