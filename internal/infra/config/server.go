package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
)

// ServerConfig represents the song server configuration.
type ServerConfig struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Library LibraryConfig `yaml:"library"`
	Storage StorageConfig `yaml:"storage"`
	Spotify SpotifyConfig `yaml:"spotify"`
	LastFM  LastFMConfig  `yaml:"lastfm"`
}

// HTTPConfig represents the HTTP listener configuration.
type HTTPConfig struct {
	Addr      string      `yaml:"addr" default:":8000"`
	StaticDir string      `yaml:"static_dir"`
	Hooks     HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// LibraryConfig lists the sources merged into the song library.
type LibraryConfig struct {
	Sources     []SourceConfig `yaml:"sources" validate:"required,min=1,dive"`
	EnrichGenre bool           `yaml:"enrich_genre"`
}

// SourceConfig represents a single library source.
type SourceConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=file rhythmdb spotify"`
	DisplayName string         `yaml:"display_name"`
	Settings    map[string]any `yaml:"settings" validate:"required"`
}

// StorageConfig selects how song contents are served.
type StorageConfig struct {
	Type string   `yaml:"type" default:"local" validate:"oneof=local s3 direct"`
	Root string   `yaml:"root" validate:"required_if=Type local"`
	S3   S3Config `yaml:"s3"`
}

// S3Config represents S3 (or S3-compatible) storage configuration.
// Credentials come from the AWS default chain.
type S3Config struct {
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix" default:"Music"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	UsePathStyle  bool   `yaml:"use_path_style"`
	ExpiryMinutes int    `yaml:"expiry_minutes" default:"60" validate:"gte=1,lte=10080"`
}

// Expiry returns the presigned URL lifetime.
func (c S3Config) Expiry() time.Duration {
	return time.Duration(c.ExpiryMinutes) * time.Minute
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// Configured reports whether credentials are present.
func (c SpotifyConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// LastFMConfig represents Last.fm API configuration.
type LastFMConfig struct {
	APIKey string `yaml:"api_key"`
}

// LoadServer loads the song server configuration.
// Environment variables take precedence over file values for secrets.
func LoadServer(path string) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ServerConfig) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		c.LastFM.APIKey = v
	}
}

// Validate validates the configuration.
func (c *ServerConfig) Validate() error {
	if err := validate(c); err != nil {
		return err
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return errors.New("storage.s3.bucket is required for s3 storage")
	}
	if c.Library.EnrichGenre && c.LastFM.APIKey == "" {
		return errors.New("lastfm.api_key is required when library.enrich_genre is set")
	}
	if c.UsesSource("spotify") && !c.Spotify.Configured() {
		return errors.New("spotify credentials are required for spotify sources")
	}
	return nil
}

// UsesSource reports whether any library source has the given type.
func (c *ServerConfig) UsesSource(sourceType string) bool {
	for _, s := range c.Library.Sources {
		if s.Type == sourceType {
			return true
		}
	}
	return false
}
