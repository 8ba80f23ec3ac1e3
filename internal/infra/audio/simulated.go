package audio

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// SimulatedOutput plays nothing. Each stream tracks elapsed wall-clock time
// and reports the end once the media duration has passed.
type SimulatedOutput struct {
	// DefaultDuration is used when the media carries no duration.
	DefaultDuration time.Duration
	// Tick is the wall-clock polling interval.
	Tick time.Duration
}

// NewSimulatedOutput creates a simulated output.
func NewSimulatedOutput() *SimulatedOutput {
	return &SimulatedOutput{
		DefaultDuration: 3 * time.Minute,
		Tick:            100 * time.Millisecond,
	}
}

func (o *SimulatedOutput) Open(ctx context.Context, media Media, onEnded func()) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	duration := media.Duration
	if duration <= 0 {
		duration = o.DefaultDuration
	}
	tick := o.Tick
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	zlog.Debug().Msgf("audio: simulated open: song=%s duration=%v", media.SongID, duration)
	return &simulatedStream{
		duration: duration,
		tick:     tick,
		onEnded:  onEnded,
	}, nil
}

type simulatedStream struct {
	mu sync.Mutex

	duration time.Duration
	tick     time.Duration
	onEnded  func()

	playing   bool
	closed    bool
	startTime time.Time     // wall time playback (re)started
	elapsed   time.Duration // position accumulated before startTime

	timerCancel func()
	timerGen    uint64
}

func (s *simulatedStream) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if s.playing {
		return nil
	}
	if s.elapsed >= s.duration {
		s.elapsed = 0
	}
	s.playing = true
	s.startTime = toWallTime(time.Now())
	s.startTimerLocked(s.duration - s.elapsed)
	return nil
}

func (s *simulatedStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if !s.playing {
		return nil
	}
	s.elapsed = s.positionLocked()
	s.playing = false
	s.stopTimerLocked()
	return nil
}

func (s *simulatedStream) Restart() error {
	return s.Seek(0)
}

func (s *simulatedStream) Seek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	s.elapsed = min(max(pos, 0), s.duration)
	if s.playing {
		s.startTime = toWallTime(time.Now())
		s.startTimerLocked(s.duration - s.elapsed)
	}
	return nil
}

func (s *simulatedStream) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *simulatedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.playing = false
	s.stopTimerLocked()
	return nil
}

func (s *simulatedStream) positionLocked() time.Duration {
	pos := s.elapsed
	if s.playing {
		pos += toWallTime(time.Now()).Sub(s.startTime)
	}
	return min(pos, s.duration)
}

func (s *simulatedStream) startTimerLocked(remaining time.Duration) {
	s.stopTimerLocked()

	gen := s.timerGen
	s.timerCancel = startWallClockTimer(remaining, s.tick, func() {
		s.mu.Lock()
		if s.closed || !s.playing || gen != s.timerGen {
			s.mu.Unlock()
			return
		}
		s.elapsed = s.duration
		s.playing = false
		s.timerCancel = nil
		onEnded := s.onEnded
		s.mu.Unlock()

		if onEnded != nil {
			onEnded()
		}
	})
}

func (s *simulatedStream) stopTimerLocked() {
	s.timerGen++
	if s.timerCancel != nil {
		s.timerCancel()
		s.timerCancel = nil
	}
}

// startWallClockTimer calls callback once duration has passed on the wall clock.
// Returns a cancel function.
func startWallClockTimer(duration, tick time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		endTime := toWallTime(time.Now()).Add(duration)
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !toWallTime(time.Now()).Before(endTime) {
					// Cancelled between the tick and now.
					if ctx.Err() != nil {
						return
					}
					callback()
					return
				}
			}
		}
	}()

	return cancel
}

// toWallTime strips the monotonic clock reading so differences follow the wall clock.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
