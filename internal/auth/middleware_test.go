package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	server := NewServer(nil, []byte("test-secret"), time.Minute, time.Hour)
	tokens, err := server.issueTokens(User{ID: "user-123", Email: "test@example.com"})
	assert.NoError(t, err)

	var seenUserID string
	var seenClaims *TokenClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = r.Header.Get("X-User-Id")
		seenClaims, _ = r.Context().Value(ctxClaimsKey{}).(*TokenClaims)
		w.WriteHeader(http.StatusOK)
	})
	handler := server.Middleware(next)

	t.Run("Valid Access Token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/gigs", nil)
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-123", seenUserID)
		if assert.NotNil(t, seenClaims) {
			assert.Equal(t, "test@example.com", seenClaims.Email)
		}
	})

	t.Run("Client Cannot Spoof User Header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/gigs", nil)
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		req.Header.Set("X-User-Id", "someone-else")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-123", seenUserID)
	})

	t.Run("Refresh Token Rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/gigs", nil)
		req.Header.Set("Authorization", "Bearer "+tokens.RefreshToken)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Missing Header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/gigs", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Malformed Header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/gigs", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
