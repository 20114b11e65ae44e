package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	require.True(t, issuer.Enabled())

	token, err := issuer.GenerateToken("user-42")
	require.NoError(t, err)

	claims, err := issuer.ValidToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, "supportrelay", claims.Issuer)
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("a", time.Hour).GenerateToken("u")
	require.NoError(t, err)

	_, err = NewTokenIssuer("b", time.Hour).ValidToken(token)
	assert.Error(t, err)
}

func TestTokenIssuer_Disabled(t *testing.T) {
	issuer := NewTokenIssuer("", 0)
	assert.False(t, issuer.Enabled())

	_, err := issuer.GenerateToken("u")
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token, err := issuer.GenerateToken("user-7")
	require.NoError(t, err)

	var seen string
	handler := AuthMiddleware(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token sets user id", func(t *testing.T) {
		seen = ""
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-7", seen)
	})

	t.Run("no header is anonymous", func(t *testing.T) {
		seen = "stale"
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "", seen)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.Header.Set("Authorization", token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestModeratorKeyMiddleware(t *testing.T) {
	hash, err := HashModeratorKey("letmein")
	require.NoError(t, err)
	require.NoError(t, CheckModeratorKey("letmein", hash))

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	guarded := ModeratorKeyMiddleware(hash)(ok)

	req := httptest.NewRequest(http.MethodGet, "/api/moderator/stats", nil)
	w := httptest.NewRecorder()
	guarded.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/moderator/stats", nil)
	req.Header.Set(ModeratorKeyHeader, "wrong")
	w = httptest.NewRecorder()
	guarded.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/moderator/stats", nil)
	req.Header.Set(ModeratorKeyHeader, "letmein")
	w = httptest.NewRecorder()
	guarded.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	open := ModeratorKeyMiddleware("")(ok)
	req = httptest.NewRequest(http.MethodGet, "/api/moderator/stats", nil)
	w = httptest.NewRecorder()
	open.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
