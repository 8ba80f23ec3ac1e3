//go:build (linux && cgo) || windows || darwin

package audio

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"
)

// Available reports whether this build can play sound.
const Available = true

// SpeakerOutput plays through the system sound device.
// The speaker is initialised once at a fixed sample rate; sources are resampled.
type SpeakerOutput struct {
	mu          sync.Mutex
	initialized bool
	sampleRate  beep.SampleRate
	fetcher     *Fetcher
}

// NewSpeakerOutput creates a speaker output.
func NewSpeakerOutput(fetcher *Fetcher) (*SpeakerOutput, error) {
	if fetcher == nil {
		fetcher = NewFetcher(nil)
	}
	return &SpeakerOutput{
		sampleRate: beep.SampleRate(44100),
		fetcher:    fetcher,
	}, nil
}

func (o *SpeakerOutput) initSpeaker() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.initialized {
		return nil
	}
	if err := speaker.Init(o.sampleRate, o.sampleRate.N(time.Second/10)); err != nil {
		return errors.Wrap(err, "failed to initialize speaker")
	}
	o.initialized = true
	return nil
}

func (o *SpeakerOutput) Open(ctx context.Context, media Media, onEnded func()) (Stream, error) {
	loaded, err := o.fetcher.Fetch(ctx, media.Source)
	if err != nil {
		return nil, err
	}

	streamer, format, err := decode(loaded)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", loaded.Format)
	}

	if err := o.initSpeaker(); err != nil {
		streamer.Close()
		return nil, err
	}

	s := &speakerStream{
		streamer:   streamer,
		format:     format,
		sampleRate: o.sampleRate,
		onEnded:    onEnded,
	}
	s.startLocked(true)
	zlog.Debug().Msgf("audio: opened song=%s format=%s length=%v",
		media.SongID, loaded.Format, format.SampleRate.D(streamer.Len()))
	return s, nil
}

func decode(loaded *Loaded) (beep.StreamSeekCloser, beep.Format, error) {
	r := nopCloser{bytes.NewReader(loaded.Data)}
	switch loaded.Format {
	case FormatFLAC:
		return flac.Decode(r)
	case FormatWAV:
		return wav.Decode(r)
	case FormatOGG:
		return vorbis.Decode(r)
	default:
		return mp3.Decode(r)
	}
}

type speakerStream struct {
	mu sync.Mutex

	ctrl       *beep.Ctrl
	streamer   beep.StreamSeekCloser
	format     beep.Format
	sampleRate beep.SampleRate
	onEnded    func()

	finished bool
	closed   bool
	seq      uint64 // identifies the sequence currently queued on the speaker
}

// startLocked queues the streamer on the speaker. A finished sequence is
// dropped by the mixer, so restarting after the end needs a new one.
func (s *speakerStream) startLocked(paused bool) {
	s.seq++
	seq := s.seq
	s.finished = false
	s.ctrl = &beep.Ctrl{
		Streamer: beep.Resample(4, s.format.SampleRate, s.sampleRate, s.streamer),
		Paused:   paused,
	}
	speaker.Play(beep.Seq(s.ctrl, beep.Callback(func() {
		// Runs with the speaker lock held.
		go s.handleEnded(seq)
	})))
}

func (s *speakerStream) handleEnded(seq uint64) {
	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		return
	}
	s.finished = true
	onEnded := s.onEnded
	s.mu.Unlock()

	if onEnded != nil {
		onEnded()
	}
}

func (s *speakerStream) setPaused(paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if s.finished {
		if paused {
			return nil
		}
		if err := s.seekLocked(0); err != nil {
			return err
		}
		s.startLocked(false)
		return nil
	}
	speaker.Lock()
	s.ctrl.Paused = paused
	speaker.Unlock()
	return nil
}

func (s *speakerStream) Play() error {
	return s.setPaused(false)
}

func (s *speakerStream) Pause() error {
	return s.setPaused(true)
}

func (s *speakerStream) Restart() error {
	return s.Seek(0)
}

func (s *speakerStream) Seek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	sample := max(min(s.format.SampleRate.N(pos), s.streamer.Len()-1), 0)
	if s.finished {
		if err := s.seekLocked(sample); err != nil {
			return err
		}
		s.startLocked(true)
		return nil
	}
	return s.seekLocked(sample)
}

func (s *speakerStream) seekLocked(pos int) error {
	speaker.Lock()
	defer speaker.Unlock()
	return errors.Wrap(s.streamer.Seek(pos), "failed to seek")
}

func (s *speakerStream) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}
	speaker.Lock()
	pos := s.streamer.Position()
	speaker.Unlock()
	return s.format.SampleRate.D(pos)
}

func (s *speakerStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	speaker.Lock()
	s.ctrl.Paused = true
	s.ctrl.Streamer = nil
	speaker.Unlock()

	return s.streamer.Close()
}
