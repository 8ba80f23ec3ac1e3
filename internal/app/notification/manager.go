// Package notification provides the notification manager for broadcasting playback events.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/rhythmical/internal/app/playback"
	"github.com/osa030/rhythmical/internal/domain/song"
)

// sendTimeout bounds a single subscriber send.
const sendTimeout = 500 * time.Millisecond

// Notification is the payload delivered to subscribers.
type Notification struct {
	SequenceNo uint64    `json:"sequence_no"`
	Type       string    `json:"type"`
	SongID     string    `json:"song_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	Artist     string    `json:"artist,omitempty"`
	State      string    `json:"state"`
	FilterKey  string    `json:"filter_key,omitempty"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// FromEvent builds a notification from a playback event.
// lookup resolves the song id for display fields; it may be nil.
func FromEvent(e playback.Event, lookup func(id string) (song.Song, bool)) *Notification {
	n := &Notification{
		Type:      e.Type.String(),
		SongID:    e.SongID,
		State:     e.State.String(),
		FilterKey: e.FilterKey,
		Timestamp: time.Now(),
	}
	if lookup != nil {
		if s, ok := lookup(e.SongID); ok {
			n.Title = s.Title
			n.Artist = s.Artist
		}
	}
	if e.Err != nil {
		n.Message = e.Err.Error()
	}
	return n
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast stamps the notification with the next sequence number and sends
// it to all subscribers in parallel. Subscribers whose send fails are removed;
// slow subscribers are skipped after sendTimeout.
func (m *Manager) Broadcast(notification *Notification) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	notification.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(notification)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Err(err).Msgf("notification: removing subscriber %s", s.id)
					m.Unsubscribe(s.id)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: send to %s timed out", s.id)
			}
		}(sub)
	}

	wg.Wait()
}

// Run forwards playback events as notifications until the channel closes
// or ctx is done.
func (m *Manager) Run(ctx context.Context, events <-chan playback.Event, lookup func(id string) (song.Song, bool)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			m.Broadcast(FromEvent(e, lookup))
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
