package playback

// EventType represents a playback event type.
type EventType int

const (
	EventSongChanged    EventType = iota // A different song was selected
	EventSongLoaded                      // The selected song's source is loaded
	EventStateChanged                    // Play/pause state changed, or the song restarted
	EventFilterChanged                   // The filtered set changed
	EventQueueExhausted                  // No song available to continue with
	EventSourceFailed                    // Source resolution or loading failed
	EventCatalogChanged                  // The catalog was replaced
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSongChanged:
		return "song_changed"
	case EventSongLoaded:
		return "song_loaded"
	case EventStateChanged:
		return "state_changed"
	case EventFilterChanged:
		return "filter_changed"
	case EventQueueExhausted:
		return "queue_exhausted"
	case EventSourceFailed:
		return "source_failed"
	case EventCatalogChanged:
		return "catalog_changed"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type      EventType
	SongID    string // Current song id (empty when idle)
	State     State  // Playback state after the event
	FilterKey string // Set for EventFilterChanged
	Err       error  // Set for EventSourceFailed
}
