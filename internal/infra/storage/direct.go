package storage

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
)

// DirectStore treats locations as absolute URLs (for example Spotify
// preview clips).
type DirectStore struct {
	httpClient *http.Client
}

// NewDirectStore creates a direct store. client is used by Exists; nil
// means a client with a 10s timeout.
func NewDirectStore(client *http.Client) *DirectStore {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &DirectStore{httpClient: client}
}

// Resolve returns the location itself.
func (s *DirectStore) Resolve(_ context.Context, location string) (Content, error) {
	u, err := url.Parse(location)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Content{}, errors.Newf("location %q is not an http(s) url", location)
	}
	return Content{URL: location}, nil
}

// Exists issues a HEAD request.
func (s *DirectStore) Exists(ctx context.Context, location string) (bool, error) {
	if _, err := s.Resolve(ctx, location); err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, location, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to create request")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "request failed")
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return false, nil
	default:
		return false, errors.Newf("unexpected status %d for %s", resp.StatusCode, location)
	}
}

// Name returns the storage type.
func (s *DirectStore) Name() string {
	return "direct"
}
