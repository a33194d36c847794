// Package middleware provides the HTTP middleware chain of the status
// server: request IDs, panic recovery, security headers, and request
// logging with Prometheus counters.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Faith-Rounds/flash-arb-bot/internal/metrics"
)

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// Logging logs one structured entry per request and counts it in
// metrics.RequestsTotal. Only paths listed in known are used as metric
// labels; anything else is counted as "other".
//
// Successful probe traffic (/health, /metrics, /status) is frequent, so it
// is logged at Debug. Admin calls and errors are logged at Info or above.
func Logging(logger *slog.Logger, known ...string) func(http.Handler) http.Handler {
	labels := make(map[string]bool, len(known))
	for _, p := range known {
		labels[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			label := "other"
			if labels[r.URL.Path] {
				label = r.URL.Path
			}
			metrics.RequestsTotal.WithLabelValues(label, r.Method, strconv.Itoa(rec.statusCode)).Inc()

			logger.Log(r.Context(), levelFor(r.URL.Path, rec.statusCode), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.statusCode,
				"latency_ms", time.Since(start).Milliseconds(),
				"client_ip", r.RemoteAddr,
				"request_id", GetRequestID(r.Context()),
			)
		})
	}
}

func levelFor(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case strings.HasPrefix(path, "/admin/"):
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// Chain applies middlewares so that the first one listed is outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
