package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the authenticated user id from the request
// context. Returns 0 when the request did not pass RequireAuth.
func UserIDFromContext(ctx context.Context) int64 {
	if v, ok := ctx.Value(userIDKey).(int64); ok {
		return v
	}
	return 0
}

// BearerToken extracts the bearer credential from a request. The token is
// taken from the Authorization header, falling back to the "token" query
// parameter for websocket upgrades where custom headers are awkward.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return r.URL.Query().Get("token")
}

// RequireAuth returns middleware that verifies the request's bearer token
// and injects the user id into the request context. Each request is
// re-verified independently.
func RequireAuth(tm *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}

			userID, err := tm.Verify(token)
			if err != nil {
				http.Error(w, `{"error":"invalid authentication credentials"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
