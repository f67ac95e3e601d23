package internal

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/johndosdos/chatterfeed/internal/auth"
)

// Middleware validates the bearer id token of a write request. Requests
// without a valid token get 401; valid ones carry the user id in their
// context under auth.UserIDKey.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="media"`)
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			id, err := auth.ValidateJWT(strings.TrimSpace(token), secret)
			if err != nil {
				slog.WarnContext(r.Context(), "rejected id token",
					"error", err,
					"path", r.URL.Path,
					"method", r.Method)
				w.Header().Set("WWW-Authenticate", `Bearer realm="media", error="invalid_token"`)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			r = r.WithContext(context.WithValue(r.Context(), auth.UserIDKey, id.UID))
			next.ServeHTTP(w, r)
		})
	}
}
