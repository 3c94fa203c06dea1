package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brightcrawl/rqueue/internal/rqclient"
)

func TestClientGetRequestReturnsNotFoundOn404(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "record-not-found", "message": "nope"},
		})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, QueueID: "q1"}, nil)
	require.NoError(t, err)

	_, err = c.GetRequest(context.Background(), "missing")
	require.Error(t, err)
}

func TestClientAddRequestRoundTrips(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"requestId":         "r1",
			"uniqueKey":         "https://a",
			"wasAlreadyPresent": false,
			"wasAlreadyHandled": false,
		})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, QueueID: "q1"}, nil)
	require.NoError(t, err)

	result, err := c.AddRequest(context.Background(), rqclient.Request{URL: "https://a"}, false)
	require.NoError(t, err)
	require.Equal(t, "r1", result.RequestID)
	require.False(t, result.WasAlreadyPresent)
}

func TestClientRetriesOn503ThenSucceeds(t *testing.T) {
	t.Parallel()

	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "q1"})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, QueueID: "q1"}, nil)
	require.NoError(t, err)
	c.backoff.baseDelay = 0

	info, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "q1", info.ID)
	require.GreaterOrEqual(t, attempts, 2)
}
