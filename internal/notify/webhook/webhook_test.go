package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/greenhouse/internal/notify"
)

func testPayload() notify.WelcomePayload {
	return notify.WelcomePayload{
		Kind:        notify.KindWelcome,
		UserID:      "user-1",
		Email:       "fern@example.com",
		FullName:    "Fern <Gully>",
		DisplayName: "Fern <Gully>",
		OccurredAt:  time.Date(2025, 4, 1, 8, 30, 0, 0, time.UTC),
	}
}

func newTestClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		URL:             url,
		RetryLimit:      retries,
		InitialInterval: time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{URL: "  "})
	require.Error(t, err)
}

func TestSendPostsPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	require.NoError(t, c.Send(context.Background(), testPayload()))

	assert.Equal(t, "welcome", got["kind"])
	assert.Equal(t, "user-1", got["user_id"])
	assert.Equal(t, "fern@example.com", got["email"])
	assert.Equal(t, "greenhouse", got["username"])
	text, ok := got["text"].(string)
	require.True(t, ok)
	assert.Contains(t, text, "Welcome to Greenhouse, Fern &lt;Gully&gt;!")
	assert.Contains(t, text, "2025-04-01T08:30:00Z")
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "try later", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	require.NoError(t, c.Send(context.Background(), testPayload()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendGivesUpAfterRetryLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	err := c.Send(context.Background(), testPayload())
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5)
	err := c.Send(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad payload")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendRetriesThrottling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1)
	require.NoError(t, c.Send(context.Background(), testPayload()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL, RetryLimit: 10, InitialInterval: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = c.Send(ctx, testPayload())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFormatMessageFallsBackToEmail(t *testing.T) {
	c := newTestClient(t, "https://hooks.example.com/welcome", 0)
	p := testPayload()
	p.DisplayName = ""
	p.Kind = ""

	msg := c.formatMessage(p)
	assert.Equal(t, notify.KindWelcome, msg.Kind)
	assert.Contains(t, msg.Text, "Welcome to Greenhouse, fern@example.com!")
}
