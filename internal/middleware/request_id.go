package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ContextKey namespaces context values this package stores, to avoid
// collisions with keys set elsewhere.
type ContextKey string

// RequestIDKey is the context key RequestID stores the request ID under.
const RequestIDKey ContextKey = "request_id"

// RequestID assigns each request a correlation ID, reusing an inbound
// X-Request-ID header if the caller (load balancer, proxy) already set
// one, and echoes it back on the response for client-side correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from ctx, or "" if the middleware
// was not installed.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
