package httpapi

import (
	"compress/gzip"
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"notecrumbs/internal/metrics"
)

type requestIDKey struct{}

// generateRequestID returns a short hex id, grounded on the teacher's
// generateRequestID (logging.go).
func generateRequestID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b[:])
}

// RequestIDFromContext returns the id attached by RequestLoggingMiddleware,
// or "" if none is present.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// statusResponseWriter captures the status code written so the logging
// middleware can report it after the handler returns.
type statusResponseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusResponseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RequestLoggingMiddleware attaches a request id, logs method/path/status/
// duration at a level chosen by the response status, and increments the
// http request/error counters. Skips /metrics and static asset paths to
// avoid log spam, the same exclusion list the teacher's version applies.
func RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" || r.URL.Path == "/damus.css" || strings.HasPrefix(r.URL.Path, "/assets/") ||
			strings.HasPrefix(r.URL.Path, "/fonts/") {
			next.ServeHTTP(w, r)
			return
		}

		reqID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		r = r.WithContext(ctx)

		sw := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		dur := time.Since(start)

		metrics.HTTPRequestsTotal.Add(1)

		logger := slog.With("request_id", reqID, "method", r.Method, "path", r.URL.Path,
			"status", sw.status, "duration_ms", dur.Milliseconds())
		switch {
		case sw.status >= 500:
			metrics.HTTPErrorsTotal.Add(1)
			logger.Error("request failed")
		case sw.status >= 400:
			logger.Warn("request rejected")
		default:
			logger.Debug("request handled")
		}
	})
}

// securityHeaders sets the fixed response headers the teacher's
// securityHeaders applies, plus panic recovery so a bug in one request
// never takes the process down.
func securityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered", "error", err, "method", r.Method, "path", r.URL.Path)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next(w, r)
	}
}

var gzipPool = sync.Pool{New: func() any { return gzip.NewWriter(nil) }}

type gzipResponseWriter struct {
	http.ResponseWriter
	gz *gzip.Writer
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) { return w.gz.Write(b) }

// gzipMiddleware compresses responses when the client advertises support
// and the config enables it, mirroring the teacher's gzipMiddleware.
func gzipMiddleware(enabled bool, next http.HandlerFunc) http.HandlerFunc {
	if !enabled {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next(w, r)
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Vary", "Accept-Encoding")

		gz := gzipPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer gzipPool.Put(gz)

		next(&gzipResponseWriter{ResponseWriter: w, gz: gz}, r)
		gz.Close()
	}
}
