package bling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blingsync/backend/internal/domain/credential"
	"github.com/blingsync/backend/internal/domain/shared"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *TokenProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewTokenProvider(server.URL, 2*time.Second, nil)
}

func TestRefreshTokenSuccess(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-1", user)
		assert.Equal(t, "secret-1", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token":"new-access",
			"refresh_token":"new-refresh",
			"expires_in":21600,
			"scope":"produtos pedidos"
		}`))
	})

	tokens, err := provider.RefreshToken(context.Background(), "client-1", "secret-1", "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", tokens.AccessToken)
	assert.Equal(t, "new-refresh", tokens.RefreshToken)
	assert.Equal(t, []string{"produtos", "pedidos"}, tokens.Scopes)
	assert.WithinDuration(t, time.Now().Add(6*time.Hour), tokens.ExpiresAt, time.Minute)
}

func TestRefreshTokenInvalidGrant(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	_, err := provider.RefreshToken(context.Background(), "c", "s", "stale")
	assert.ErrorIs(t, err, credential.ErrConnectionExpired)
	assert.False(t, shared.IsRetryable(err))
}

func TestRefreshTokenServerErrorIsRetryable(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := provider.RefreshToken(context.Background(), "c", "s", "r")
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))
}

func TestRefreshTokenMissingTokensRejected(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"only-access","expires_in":3600}`))
	})

	_, err := provider.RefreshToken(context.Background(), "c", "s", "r")
	assert.Error(t, err)
}
