// Package httpapi is the request dispatcher (C6): it routes incoming HTTP
// requests, decodes bech32 references, drives the assembler and renderer,
// and maps the error taxonomy of spec.md §7 to response status codes.
// Grounded on the teacher's main.go route table and handlers.go's
// threadHandler/profileHandler request flow.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"notecrumbs/internal/assemble"
	"notecrumbs/internal/config"
	"notecrumbs/internal/metrics"
	"notecrumbs/internal/nip19"
	"notecrumbs/internal/relaypool"
	"notecrumbs/internal/render"
	"notecrumbs/internal/rendercache"
	"notecrumbs/internal/store"
)

// renderCacheTTL bounds how long an assembled artifact is served from
// rendercache before the next request reassembles it. Short enough that a
// freshly-ingested mention/reply shows up promptly, long enough to absorb
// bursts on a popular link.
const renderCacheTTL = 30 * time.Second

// Server wires the assembler, renderer, and render-output cache into an
// http.Handler. It holds no per-request state.
type Server struct {
	cfg       config.Config
	store     store.EventStore
	assembler *assemble.Assembler
	renderer  *render.Renderer
	cache     rendercache.Backend
	pool      *relaypool.Pool
}

// New builds a Server. cache may be nil, in which case every request
// reassembles (no render-output caching).
func New(cfg config.Config, s store.EventStore, a *assemble.Assembler, r *render.Renderer, cache rendercache.Backend, pool *relaypool.Pool) *Server {
	return &Server{cfg: cfg, store: s, assembler: a, renderer: r, cache: cache, pool: pool}
}

// Routes builds the full handler chain: middleware wrapping a mux
// registered per spec.md §6's HTTP surface table.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", securityHeaders(gzipMiddleware(s.cfg.GzipEnabled, s.homeOrArtifact)))
	mux.HandleFunc("/metrics", metrics.Handler)
	mux.HandleFunc("/robots.txt", securityHeaders(s.robotsHandler))
	mux.HandleFunc("/sitemap.xml", securityHeaders(s.sitemapHandler))
	mux.HandleFunc("/health", securityHeaders(s.healthHandler))
	mux.HandleFunc("/damus.css", securityHeaders(s.staticAssetHandler))
	mux.HandleFunc("/fonts/", securityHeaders(s.staticAssetHandler))
	mux.HandleFunc("/assets/", securityHeaders(s.staticAssetHandler))

	return RequestLoggingMiddleware(mux)
}

// homeOrArtifact serves the static homepage at "/" and treats every other
// path as a bech32 artifact request (spec.md §4.6).
func (s *Server) homeOrArtifact(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		s.homeHandler(w, r)
		return
	}
	s.artifactHandler(w, r)
}

// writeError maps the error taxonomy of spec.md §7 to an HTTP status and
// writes a response body. Anything not explicitly recognized degrades to
// 500, since by this point an unrecognized error can only have come from
// the store or renderer.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, nip19.ErrSecretRejected):
		http.Error(w, "secret key references are not supported", http.StatusBadRequest)
	case errors.Is(err, nip19.ErrInvalidRef):
		http.NotFound(w, r)
	case errors.Is(err, store.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, render.ErrRenderFailed):
		slog.Error("render failed", "path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	default:
		slog.Error("dispatch failed", "path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// requestContext bounds blocking relay work by T_req (spec.md §5), derived
// from config.FetchTimeout (TIMEOUT_MS).
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.FetchTimeout)
}
