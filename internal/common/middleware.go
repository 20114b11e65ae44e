package common

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type ctxKey string

const (
	ctxKeyUserID ctxKey = "user_id"

	ModeratorKeyHeader = "X-Moderator-Key"
)

// WithUserID injects the authenticated user identity into the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, userID)
}

// UserIDFromContext returns the identity set by AuthMiddleware, if any
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ctxKeyUserID).(string)
	return userID, ok && userID != ""
}

// AuthMiddleware reads an optional "Authorization: Bearer <token>" header.
// Requests without the header pass through anonymously; a present but invalid
// token is rejected. A disabled issuer skips verification entirely.
func AuthMiddleware(issuer *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !issuer.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			// header = Bearer <token>
			parts := strings.Fields(header)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				unauthorized(w, "invalid auth header")
				return
			}

			claims, err := issuer.ValidToken(parts[1])
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		})
	}
}

// ModeratorKeyMiddleware guards moderator routes with a shared key checked
// against a bcrypt hash. An empty hash leaves the routes open.
func ModeratorKeyMiddleware(hashedKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hashedKey == "" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(ModeratorKeyHeader)
			if key == "" {
				unauthorized(w, "moderator key required")
				return
			}
			if err := CheckModeratorKey(key, hashedKey); err != nil {
				unauthorized(w, "invalid moderator key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
