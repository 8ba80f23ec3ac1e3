// Package apiclient provides a client for the song server HTTP API.
package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/rhythmical/internal/domain/song"
)

// UnknownErrorMessage is used when an error response carries no usable message.
const UnknownErrorMessage = "An unknown error occurred"

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Error is a non-2xx response from the API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// Client is a song server API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// Config represents API client configuration.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("api base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "invalid api base url")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}, nil
}

// FetchSongs retrieves the full song list.
func (c *Client) FetchSongs(ctx context.Context) ([]song.Song, error) {
	var songs []song.Song
	err := c.retry(ctx, func() error {
		resp, err := c.get(ctx, c.baseURL+"/api/songs")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errorFromResponse(resp)
		}

		var result []song.Song
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return errors.Wrap(err, "failed to decode song list")
		}
		songs = result
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch songs")
	}

	zlog.Debug().Msgf("apiclient: fetched %d songs", len(songs))
	return songs, nil
}

// ContentsURL returns the contents endpoint for a song id.
func (c *Client) ContentsURL(id string) string {
	return c.baseURL + "/api/songs/" + url.PathEscape(id) + "/contents"
}

// ResolveSource returns a playable locator for the song.
// A JSON string or plain-text body is the locator itself; an audio body
// means the contents endpoint is directly playable.
func (c *Client) ResolveSource(ctx context.Context, id string) (string, error) {
	endpoint := c.ContentsURL(id)

	var source string
	err := c.retry(ctx, func() error {
		resp, err := c.get(ctx, endpoint)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errorFromResponse(resp)
		}

		mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
		switch {
		case mediaType == "application/json":
			var locator string
			if err := json.NewDecoder(resp.Body).Decode(&locator); err != nil {
				return errors.Wrap(err, "failed to decode source url")
			}
			source = locator
		case mediaType == "text/plain":
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			if err != nil {
				return errors.Wrap(err, "failed to read source url")
			}
			source = strings.TrimSpace(string(body))
		default:
			// audio/* or application/octet-stream: stream from the endpoint itself.
			source = endpoint
		}
		if source == "" {
			return errors.Newf("empty source for song %s", id)
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve source for song %s", id)
	}
	return source, nil
}

func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	return resp, nil
}

// errorFromResponse extracts the error message from a failed response:
// a JSON object's "error" field, a JSON string, or a plain-text body.
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &Error{StatusCode: resp.StatusCode, Message: ExtractErrorMessage(body)}
}

// ExtractErrorMessage returns the message carried by an error body.
func ExtractErrorMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return UnknownErrorMessage
	}

	var obj struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		if msg, ok := obj.Error.(string); ok && msg != "" {
			return msg
		}
		return UnknownErrorMessage
	}

	var str string
	if err := json.Unmarshal(body, &str); err == nil {
		if str == "" {
			return UnknownErrorMessage
		}
		return str
	}

	if strings.HasPrefix(trimmed, "<") {
		return UnknownErrorMessage
	}
	return trimmed
}

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(ctx, err) {
			return err
		}

		if i < c.maxRetries-1 {
			zlog.Debug().Err(err).Msgf("apiclient: retrying (attempt %d/%d)", i+2, c.maxRetries)
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry aborted")
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable reports whether err is a transport failure, a rate limit or a server error.
func isRetryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
