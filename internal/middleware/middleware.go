// Package middleware provides the small set of HTTP middleware
// cmd/htg-server installs on every route: request logging, panic
// recovery, real-client-IP resolution, and a request timeout.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// SlowRequestThreshold marks a request as worth a WARN-level log line
// instead of INFO — a fetch-triggered miss can legitimately take seconds,
// but should still stand out from the common cache-hit path.
const SlowRequestThreshold = 200 * time.Millisecond

// Logger logs each request's method, path, status, and duration via
// log/slog.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", duration.Milliseconds(),
			"remote_addr", r.RemoteAddr,
		}
		if duration > SlowRequestThreshold {
			slog.Warn("slow request", attrs...)
		} else {
			slog.Info("http request", attrs...)
		}
	})
}

// Recoverer recovers from panics in a handler and returns a 500.
func Recoverer(next http.Handler) http.Handler {
	return chimw.Recoverer(next)
}

// RealIP sets r.RemoteAddr from X-Forwarded-For / X-Real-IP when present.
func RealIP(next http.Handler) http.Handler {
	return chimw.RealIP(next)
}

// Timeout bounds every request's context to the given duration, so a slow
// tile fetch cannot hang a request indefinitely (§5 "Cancellation and
// timeouts").
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
