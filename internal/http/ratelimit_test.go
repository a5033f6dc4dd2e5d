package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	l := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 2, Now: func() time.Time { return now }})

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "clients have separate buckets")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))
}

func TestRateLimiter_DisabledWhenRateUnset(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{})
	for range 100 {
		assert.True(t, l.Allow("a"))
	}
	var nilLimiter *RateLimiter
	assert.True(t, nilLimiter.Allow("a"))
}

func TestRateLimiter_SweepDropsIdleClients(t *testing.T) {
	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	l := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, IdleTTL: time.Minute, Now: func() time.Time { return now }})

	l.Allow("a")
	now = now.Add(30 * time.Second)
	l.Allow("b")
	now = now.Add(45 * time.Second)
	l.Sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.clients, "a")
	assert.Contains(t, l.clients, "b")
}

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	h := l.Middleware(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_limited")
}
