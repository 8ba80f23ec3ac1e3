// Package httpapi serves the song library over HTTP.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/rhythmical/internal/app/library"
	"github.com/osa030/rhythmical/internal/infra/storage"
)

// Options configures the router.
type Options struct {
	Library   *library.Library
	Storage   storage.Resolver
	Metrics   *Metrics // nil disables /metrics
	StaticDir string   // optional frontend directory served at /
}

type server struct {
	library *library.Library
	storage storage.Resolver
	metrics *Metrics
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	s := &server{
		library: opts.Library,
		storage: opts.Storage,
		metrics: opts.Metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		s.metrics.librarySongs.Set(float64(opts.Library.Len()))
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/songs", s.handleSongs)
		r.Get("/songs/{id}/contents", s.handleContents)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "Not found")
		})
	})

	if opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
	}

	return r
}

func (s *server) handleSongs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.library.Songs())
}

// handleContents answers with the song's audio for local storage, or
// with a text/plain locator (for example a presigned URL) otherwise.
func (s *server) handleContents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, ok := s.library.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Song with id %s not found", id))
		return
	}

	content, err := s.storage.Resolve(r.Context(), entry.Location)
	if err != nil {
		s.observeResolution("error")
		if errors.Is(err, storage.ErrNotFound) {
			zlog.Warn().Msgf("httpapi: content missing for song %s: %v", id, err)
			writeError(w, http.StatusNotFound, fmt.Sprintf("Contents of song %s not found", id))
			return
		}
		zlog.Error().Msgf("httpapi: failed to resolve song %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Unable to resolve song contents")
		return
	}
	s.observeResolution("ok")

	if content.Path != "" {
		s.serveFile(w, r, content.Path)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(content.URL))
}

func (s *server) serveFile(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		zlog.Error().Msgf("httpapi: failed to open %s: %v", path, err)
		writeError(w, http.StatusInternalServerError, "Unable to read song contents")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Unable to read song contents")
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *server) observeResolution(outcome string) {
	if s.metrics != nil {
		s.metrics.resolutions.WithLabelValues(s.storage.Name(), outcome).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Msgf("httpapi: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// requestLogger logs each request through zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zlog.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("httpapi: request")
	})
}
