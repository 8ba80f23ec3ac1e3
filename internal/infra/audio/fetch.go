package audio

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
)

// Format is an encoded audio container.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatFLAC Format = "flac"
	FormatWAV  Format = "wav"
	FormatOGG  Format = "ogg"
)

// maxSourceBytes bounds a single download.
const maxSourceBytes = 512 << 20

// Loaded is a fully buffered source.
type Loaded struct {
	Data   []byte
	Format Format
}

// Fetcher downloads sources into memory.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a fetcher. A nil client uses http.DefaultClient.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{httpClient: client}
}

// Fetch loads the source. http(s) URLs are downloaded, file:// URLs and
// plain paths are read from disk.
func (f *Fetcher) Fetch(ctx context.Context, source string) (*Loaded, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		p := source
		if err == nil && u.Scheme == "file" {
			p = u.Path
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", p)
		}
		return &Loaded{Data: data, Format: DetectFormat("", p)}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to download source")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("unexpected status downloading source: %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, maxSourceBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read source body")
	}
	if n > maxSourceBytes {
		return nil, errors.Newf("source exceeds %d bytes", maxSourceBytes)
	}

	return &Loaded{
		Data:   buf.Bytes(),
		Format: DetectFormat(resp.Header.Get("Content-Type"), u.Path),
	}, nil
}

// DetectFormat guesses the container from a content type, then the file
// extension. Unknown input is treated as mp3.
func DetectFormat(contentType, name string) Format {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "audio/flac", "audio/x-flac":
			return FormatFLAC
		case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
			return FormatWAV
		case "audio/ogg", "audio/vorbis", "application/ogg":
			return FormatOGG
		case "audio/mpeg", "audio/mp3":
			return FormatMP3
		}
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".flac":
		return FormatFLAC
	case ".wav":
		return FormatWAV
	case ".ogg", ".oga":
		return FormatOGG
	default:
		return FormatMP3
	}
}

// nopCloser wraps a bytes.Reader to implement io.ReadSeekCloser.
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
