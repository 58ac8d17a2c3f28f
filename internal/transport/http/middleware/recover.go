package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"hrops/internal/transport/http/api"
)

func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic recovered",
					"path", r.URL.Path,
					"requestId", GetRequestID(r.Context()),
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				api.Fail(w, http.StatusInternalServerError, "internal_error", "something went wrong", GetRequestID(r.Context()))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
