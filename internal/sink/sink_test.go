package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shanaa-yasmin/Cognivex/internal/models"
)

func testBatch() models.BatchRecord {
	return models.BatchRecord{
		BatchID:  "batch-1",
		ClientID: "client-1",
		UserID:   "user-1",
		KeystrokeData: []models.CaptureEvent{
			{Type: models.EventKeyDown, Timestamp: 1, Key: &models.KeyData{Key: "a"}},
		},
		MouseData:  []models.CaptureEvent{},
		ScrollData: []models.CaptureEvent{},
	}
}

func newTestClient(baseURL string) *Client {
	return NewClient(baseURL, "test-key", "behavior_logs", 5*time.Second, zap.NewNop())
}

func TestInsertSuccess(t *testing.T) {
	var gotPath, gotAPIKey, gotAuth string
	var gotBatch models.BatchRecord

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBatch))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.Insert(context.Background(), testBatch())

	require.NoError(t, err)
	assert.Equal(t, "/rest/v1/behavior_logs", gotPath)
	assert.Equal(t, "test-key", gotAPIKey)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "batch-1", gotBatch.BatchID)
	assert.Len(t, gotBatch.KeystrokeData, 1)
}

func TestInsertPrefersAccessToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.SetAccessToken("user-token")
	require.NoError(t, c.Insert(context.Background(), testBatch()))

	assert.Equal(t, "Bearer user-token", gotAuth)
}

func TestInsertErrorTypes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"unauthorized", http.StatusUnauthorized, func(t *testing.T, err error) {
			var authErr *AuthError
			assert.ErrorAs(t, err, &authErr)
			assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
		}},
		{"forbidden", http.StatusForbidden, func(t *testing.T, err error) {
			var authErr *AuthError
			assert.ErrorAs(t, err, &authErr)
		}},
		{"rate limited", http.StatusTooManyRequests, func(t *testing.T, err error) {
			var rlErr *RateLimitError
			assert.ErrorAs(t, err, &rlErr)
		}},
		{"bad request", http.StatusBadRequest, func(t *testing.T, err error) {
			var brErr *BadRequestError
			assert.ErrorAs(t, err, &brErr)
		}},
		{"server error", http.StatusInternalServerError, func(t *testing.T, err error) {
			var sinkErr *SinkError
			assert.ErrorAs(t, err, &sinkErr)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := newTestClient(srv.URL)
			err := c.Insert(context.Background(), testBatch())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

// Token updates arrive from HTTP handler goroutines while the monitor's
// timer and drain goroutines are mid-Insert; the race detector flags any
// unguarded access to the shared token.
func TestConcurrentTokenUpdateDuringInsert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
				c.SetAccessToken(fmt.Sprintf("token-%d", i))
			}
		}
	}()

	for i := 0; i < 50; i++ {
		require.NoError(t, c.Insert(context.Background(), testBatch()))
	}

	close(done)
	wg.Wait()
}

func TestInsertConnectionRefused(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	err := c.Insert(context.Background(), testBatch())
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	assert.NoError(t, c.HealthCheck(context.Background()))
}
