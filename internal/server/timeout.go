package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware attaches a deadline to every request context. Handlers
// are not terminated forcibly; cancellation is cooperative through
// context.Done().
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
