package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/verifai/verifai/internal/domain/users"
)

type contextKey string

const (
	UserKey   contextKey = "user"
	APIKeyKey contextKey = "api_key"
)

// APIKeyAuth validates the API key from the Authorization header and loads
// the caller into the request context. File downloads authenticate through
// signed URLs instead, so /api/files/ passes through unauthenticated.
func APIKeyAuth(validKeys map[string]string, repo users.Repository, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipAuth(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing Authorization header")
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if apiKey == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid Authorization header format")
				return
			}

			// Constant-time comparison to prevent timing attacks
			var userID string
			for key, uid := range validKeys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					userID = uid
					break
				}
			}
			if userID == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key")
				return
			}

			user, err := repo.GetByID(r.Context(), userID)
			if err != nil {
				log.Warn("authenticated key maps to unknown user", zap.String("user_id", userID), zap.Error(err))
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			ctx = context.WithValue(ctx, APIKeyKey, apiKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func skipAuth(path string) bool {
	switch path {
	case "/health", "/ready", "/live":
		return true
	}
	return strings.HasPrefix(path, "/api/files/")
}

// UserFromContext extracts the authenticated user set by APIKeyAuth.
func UserFromContext(ctx context.Context) (*users.User, bool) {
	u, ok := ctx.Value(UserKey).(*users.User)
	return u, ok
}
