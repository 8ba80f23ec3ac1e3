// Package storage resolves library locations to servable song contents.
package storage

import (
	"context"
	"path"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/rhythmical/internal/infra/config"
)

// ErrNotFound is returned when a location has no content behind it.
var ErrNotFound = errors.New("content not found")

// Content is where a song's audio can be read from. Exactly one of URL
// (a locator the client fetches itself) and Path (a local file the server
// streams) is set.
type Content struct {
	URL  string
	Path string
}

// Resolver maps library locations to contents.
type Resolver interface {
	Resolve(ctx context.Context, location string) (Content, error)
	Exists(ctx context.Context, location string) (bool, error)
	Name() string
}

// New creates the resolver selected by configuration. Locations that are
// already http(s) URLs bypass the configured backend.
func New(ctx context.Context, cfg config.StorageConfig) (Resolver, error) {
	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return WithURLPassthrough(backend, NewDirectStore(nil)), nil
}

func newBackend(ctx context.Context, cfg config.StorageConfig) (Resolver, error) {
	switch cfg.Type {
	case "local", "":
		store, err := NewLocalStore(cfg.Root)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		store, err := NewS3Store(ctx, S3Options{
			Bucket:       cfg.S3.Bucket,
			Prefix:       cfg.S3.Prefix,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
			Expiry:       cfg.S3.Expiry(),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "direct":
		return NewDirectStore(nil), nil
	default:
		return nil, errors.Newf("unsupported storage type: %s", cfg.Type)
	}
}

// cleanLocation normalises a location into a slash-separated relative
// path that cannot escape its root.
func cleanLocation(location string) (string, error) {
	if strings.TrimSpace(location) == "" {
		return "", errors.New("empty location")
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+location), "/")
	if cleaned == "" {
		return "", errors.Newf("invalid location %q", location)
	}
	return cleaned, nil
}

// passthrough routes URL locations to a direct store.
type passthrough struct {
	Resolver
	direct *DirectStore
}

// WithURLPassthrough wraps backend so URL locations are handled by direct.
func WithURLPassthrough(backend Resolver, direct *DirectStore) Resolver {
	if _, ok := backend.(*DirectStore); ok {
		return backend
	}
	return &passthrough{Resolver: backend, direct: direct}
}

func (p *passthrough) Resolve(ctx context.Context, location string) (Content, error) {
	if isURL(location) {
		return p.direct.Resolve(ctx, location)
	}
	return p.Resolver.Resolve(ctx, location)
}

func (p *passthrough) Exists(ctx context.Context, location string) (bool, error) {
	if isURL(location) {
		return p.direct.Exists(ctx, location)
	}
	return p.Resolver.Exists(ctx, location)
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
