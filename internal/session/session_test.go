package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	return NewClient(baseURL, "anon-key", 5*time.Second, zap.NewNop())
}

func TestCurrentUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"user-42","email":"x@example.com"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.SetAccessToken("session-token")

	userID, err := c.CurrentUserID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestNoTokenFailsSoft(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")

	_, err := c.CurrentUserID(context.Background())
	assert.Error(t, err)
}

func TestRejectedTokenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.SetAccessToken("expired")

	_, err := c.CurrentUserID(context.Background())
	assert.Error(t, err)
}

func TestEmptyUserIDIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.SetAccessToken("token")

	_, err := c.CurrentUserID(context.Background())
	assert.Error(t, err)
}

func TestLogoutClearsSession(t *testing.T) {
	c := newTestClient("http://example.invalid")

	c.SetAccessToken("token")
	assert.True(t, c.HasSession())

	c.SetAccessToken("")
	assert.False(t, c.HasSession())

	_, err := c.CurrentUserID(context.Background())
	assert.Error(t, err)
}
