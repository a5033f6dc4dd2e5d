package httpx

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/target/greenhouse/internal/errors"
)

// RateLimiterConfig sizes the per-client token bucket.
type RateLimiterConfig struct {
	// Rate is the sustained number of requests per second per client.
	Rate float64
	// Burst is the bucket size.
	Burst int
	// IdleTTL evicts clients not seen for this long. Defaults to 10 minutes.
	IdleTTL time.Duration
	Now     func() time.Time
}

type limitedClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles credential endpoints per client address.
type RateLimiter struct {
	cfg RateLimiterConfig

	mu      sync.Mutex
	clients map[string]*limitedClient
}

// NewRateLimiter builds a limiter. A non-positive Rate disables limiting.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RateLimiter{cfg: cfg, clients: make(map[string]*limitedClient)}
}

// Allow consumes a token for key, reporting whether the request may proceed.
func (l *RateLimiter) Allow(key string) bool {
	if l == nil || l.cfg.Rate <= 0 {
		return true
	}
	now := l.cfg.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.clients[key]
	if !ok {
		c = &limitedClient{limiter: rate.NewLimiter(rate.Limit(l.cfg.Rate), l.cfg.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Sweep drops clients idle for longer than IdleTTL.
func (l *RateLimiter) Sweep() {
	cutoff := l.cfg.Now().Add(-l.cfg.IdleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

// RunSweeper evicts idle clients until ctx is done.
func (l *RateLimiter) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.IdleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Middleware rejects throttled clients with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientIP(r)) {
			w.Header().Set("Retry-After", "1")
			WriteAppError(w, apperrors.RateLimited("Too many attempts. Please wait a moment and try again."))
			return
		}
		next.ServeHTTP(w, r)
	})
}
