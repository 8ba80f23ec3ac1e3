package config

import (
	"os"
	"time"
)

// PlayerConfig represents the player process configuration.
type PlayerConfig struct {
	API       APIConfig        `yaml:"api"`
	Playback  PlaybackConfig   `yaml:"playback"`
	Audio     AudioConfig      `yaml:"audio"`
	Control   ControlConfig    `yaml:"control"`
	Playlists []PlaylistConfig `yaml:"playlists" validate:"dive"`
	Initial   InitialConfig    `yaml:"initial"`
}

// APIConfig represents the song server connection.
type APIConfig struct {
	URL        string `yaml:"url" validate:"required,url"`
	TimeoutSec int    `yaml:"timeout_sec" default:"30" validate:"gte=1,lte=300"`
	MaxRetries int    `yaml:"max_retries" default:"3" validate:"gte=1,lte=10"`
}

// Timeout returns the request timeout.
func (c APIConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSec)
}

// PlaybackConfig represents queueing and history sizes.
type PlaybackConfig struct {
	QueueLength       int  `yaml:"queue_length" default:"50" validate:"gte=1,lte=1000"`
	HistoryCapacity   int  `yaml:"history_capacity" default:"100" validate:"gte=1,lte=10000"`
	UpcomingCount     int  `yaml:"upcoming_count" default:"5" validate:"gte=0,lte=50"`
	ResolveTimeoutSec int  `yaml:"resolve_timeout_sec" default:"30" validate:"gte=1,lte=300"`
	Autoplay          bool `yaml:"autoplay"`
}

// ResolveTimeout returns the source resolution timeout.
func (c PlaybackConfig) ResolveTimeout() time.Duration {
	return seconds(c.ResolveTimeoutSec)
}

// AudioConfig selects the audio output.
type AudioConfig struct {
	Output               string `yaml:"output" default:"speaker" validate:"oneof=speaker simulated"`
	SimulatedDurationSec int    `yaml:"simulated_duration_sec" default:"180" validate:"gte=1"`
}

// ControlConfig represents the control API listener.
type ControlConfig struct {
	Addr  string `yaml:"addr" default:"127.0.0.1:8090"`
	Token string `yaml:"token"`
}

// PlaylistConfig defines a playlist; Kind selects the registered playlist type.
type PlaylistConfig struct {
	Name     string         `yaml:"name" validate:"required"`
	Kind     string         `yaml:"kind" default:"rating" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// InitialConfig is the filter applied at startup.
type InitialConfig struct {
	Playlist string `yaml:"playlist"`
	Search   string `yaml:"search"`
}

// LoadPlayer loads the player configuration.
func LoadPlayer(path string) (*PlayerConfig, error) {
	var cfg PlayerConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *PlayerConfig) overrideFromEnv() {
	if v := os.Getenv("RHYTHMICAL_API_URL"); v != "" {
		c.API.URL = v
	}
	if v := os.Getenv("RHYTHMICAL_CONTROL_TOKEN"); v != "" {
		c.Control.Token = v
	}
}

// Validate validates the configuration.
func (c *PlayerConfig) Validate() error {
	return validate(c)
}
