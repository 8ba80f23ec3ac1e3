package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/rhythmical/internal/app/playback"
	"github.com/osa030/rhythmical/internal/domain/song"
)

type recordingStream struct {
	mu       sync.Mutex
	received []*Notification
	err      error
	delay    time.Duration
}

func (s *recordingStream) Send(n *Notification) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.received = append(s.received, n)
	return nil
}

func (s *recordingStream) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func TestManager_BroadcastSequence(t *testing.T) {
	m := NewManager()
	a := &recordingStream{}
	b := &recordingStream{}
	m.Subscribe(a)
	m.Subscribe(b)
	assert.Equal(t, 2, m.SubscriberCount())

	m.Broadcast(&Notification{Type: "song_changed"})
	m.Broadcast(&Notification{Type: "state_changed"})

	require.Equal(t, 2, a.count())
	require.Equal(t, 2, b.count())
	assert.Equal(t, uint64(1), a.received[0].SequenceNo)
	assert.Equal(t, uint64(2), a.received[1].SequenceNo)
}

func TestManager_FailingSubscriberRemoved(t *testing.T) {
	m := NewManager()
	good := &recordingStream{}
	bad := &recordingStream{err: errors.New("stream closed")}
	m.Subscribe(good)
	m.Subscribe(bad)

	m.Broadcast(&Notification{Type: "song_changed"})

	assert.Equal(t, 1, m.SubscriberCount())
	assert.Equal(t, 1, good.count())
}

func TestManager_SlowSubscriberSkipped(t *testing.T) {
	m := NewManager()
	slow := &recordingStream{delay: 2 * time.Second}
	m.Subscribe(slow)

	start := time.Now()
	m.Broadcast(&Notification{Type: "song_changed"})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, m.SubscriberCount(), "timeouts do not unsubscribe")
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager()
	s := &recordingStream{}
	id := m.Subscribe(s)
	m.Unsubscribe(id)

	m.Broadcast(&Notification{Type: "song_changed"})
	assert.Equal(t, 0, s.count())
}

func TestFromEvent(t *testing.T) {
	lookup := func(id string) (song.Song, bool) {
		if id == "7" {
			return song.Song{ID: "7", Title: "Seven", Artist: "Band"}, true
		}
		return song.Song{}, false
	}

	tests := []struct {
		name     string
		event    playback.Event
		expected Notification
	}{
		{
			name:  "song changed",
			event: playback.Event{Type: playback.EventSongChanged, SongID: "7", State: playback.StatePlaying},
			expected: Notification{
				Type: "song_changed", SongID: "7", Title: "Seven", Artist: "Band", State: "playing",
			},
		},
		{
			name:  "source failed",
			event: playback.Event{Type: playback.EventSourceFailed, SongID: "9", State: playback.StatePaused, Err: errors.New("boom")},
			expected: Notification{
				Type: "source_failed", SongID: "9", State: "paused", Message: "boom",
			},
		},
		{
			name:     "queue exhausted",
			event:    playback.Event{Type: playback.EventQueueExhausted, State: playback.StateIdle},
			expected: Notification{Type: "queue_exhausted", State: "idle"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := FromEvent(tt.event, lookup)
			assert.False(t, n.Timestamp.IsZero())
			n.Timestamp = time.Time{}
			assert.Equal(t, tt.expected, *n)
		})
	}
}

func TestManager_Run(t *testing.T) {
	m := NewManager()
	s := &recordingStream{}
	m.Subscribe(s)

	events := make(chan playback.Event, 2)
	events <- playback.Event{Type: playback.EventSongChanged, SongID: "1"}
	events <- playback.Event{Type: playback.EventSongLoaded, SongID: "1"}
	close(events)

	m.Run(context.Background(), events, nil)
	assert.Equal(t, 2, s.count())
}
