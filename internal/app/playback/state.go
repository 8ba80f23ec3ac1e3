// Package playback coordinates the current song, play/pause state, the
// look-ahead queue and the history stack, and drives the audio output.
package playback

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // No song selected
	StatePaused               // Song selected, not playing
	StatePlaying              // Song selected and playing (or loading to play)
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// ParseState converts a string from String back into a State.
func ParseState(s string) State {
	switch s {
	case "paused":
		return StatePaused
	case "playing":
		return StatePlaying
	default:
		return StateIdle
	}
}
