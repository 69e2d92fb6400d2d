package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// requestIDKey is the context key for the request ID value.
type requestIDKey struct{}

// RequestIDFromContext extracts the request ID from the context.
// It returns an empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestID returns a middleware that tags every request with a UUID. An
// incoming X-Request-ID header is reused only when it parses as a UUID, so
// POS terminals can correlate retries without being able to inject
// arbitrary strings into server logs.
//
// The ID is echoed on the response X-Request-ID header and stored in the
// request context (retrieve with RequestIDFromContext); InjectLogger stamps
// it onto every log line for the request.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if parsed, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			} else {
				id = parsed.String()
			}

			w.Header().Set("X-Request-ID", id)

			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
