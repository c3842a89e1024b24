package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// APIKeyMiddleware is the REST counterpart of APIKeyInterceptor. Requests
// whose header does not carry key get 401 with a JSON error body. Paths in
// skip (e.g. health and metrics probes) are never checked.
func APIKeyMiddleware(mode, header, key string, skip ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(skip))
	for _, p := range skip {
		open[p] = true
	}
	return func(next http.Handler) http.Handler {
		if !enabled(mode, key) {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get(header)
			if got == "" || !keyMatches(got, key) {
				slog.Warn("auth: rejected http request", "method", r.Method, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
