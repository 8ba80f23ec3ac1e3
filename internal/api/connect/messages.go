package connect

import (
	"github.com/osa030/rhythmical/internal/domain/song"
)

// Empty is the request or response of calls without a payload.
type Empty struct{}

// StatusResponse describes the player state.
type StatusResponse struct {
	Song          *song.Song  `json:"song,omitempty"`
	State         string      `json:"state"`
	Loading       bool        `json:"loading"`
	PositionMs    int64       `json:"position_ms"`
	Playlist      string      `json:"playlist"`
	Search        string      `json:"search,omitempty"`
	FilterKey     string      `json:"filter_key"`
	FilteredCount int         `json:"filtered_count"`
	FilteredSec   int         `json:"filtered_duration_sec"` // Combined length of the filtered songs
	QueueLength   int         `json:"queue_length"`
	HistoryLength int         `json:"history_length"`
	Upcoming      []song.Song `json:"upcoming"`
}

// SelectRequest selects a song by id.
type SelectRequest struct {
	SongID string `json:"song_id"`
}

// SeekRequest moves the current song to a position.
type SeekRequest struct {
	PositionMs int64 `json:"position_ms"`
}

// SetFilterRequest changes the active playlist and search text.
// An empty playlist selects the default one.
type SetFilterRequest struct {
	Playlist string `json:"playlist"`
	Search   string `json:"search"`
}

// SetFilterResponse reports the resulting filter.
type SetFilterResponse struct {
	FilterKey     string `json:"filter_key"`
	Changed       bool   `json:"changed"`
	FilteredCount int    `json:"filtered_count"`
}

// UpcomingRequest asks for the next queued songs.
// A non-positive count uses the configured default.
type UpcomingRequest struct {
	Count int `json:"count"`
}

// ListSongsRequest lists songs. With no playlist and no search the active
// filter is used. Sort names a song.SortField; empty sorts by artist.
type ListSongsRequest struct {
	Playlist string `json:"playlist"`
	Search   string `json:"search"`
	Sort     string `json:"sort,omitempty"`
	Desc     bool   `json:"desc,omitempty"`
	Limit    int    `json:"limit"`
}

// SongsResponse carries a song list. Total and TotalSec cover every match,
// not only the songs kept by the limit.
type SongsResponse struct {
	Songs    []song.Song `json:"songs"`
	Total    int         `json:"total"`
	TotalSec int         `json:"total_duration_sec"`
}

// ReloadResponse reports the catalog after a reload.
type ReloadResponse struct {
	SongCount     int `json:"song_count"`
	FilteredCount int `json:"filtered_count"`
}

// PlaylistInfo describes one playlist.
type PlaylistInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SongCount   int    `json:"song_count"`
	Active      bool   `json:"active"`
}

// ListPlaylistsResponse lists the configured playlists.
type ListPlaylistsResponse struct {
	Playlists []PlaylistInfo `json:"playlists"`
}
