package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"hrops/internal/requestctx"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns each request a correlation id, honoring one supplied
// by the caller, and echoes it back on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(requestctx.WithRequestID(r.Context(), id)))
	})
}

// GetRequestID is a convenience re-export for handlers that already
// import this package.
func GetRequestID(ctx context.Context) string {
	return requestctx.GetRequestID(ctx)
}
