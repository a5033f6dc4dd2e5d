package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
	"github.com/target/greenhouse/internal/ports"
)

// SessionSnapshotter exposes the current authorization state.
type SessionSnapshotter interface {
	Snapshot() domainauth.State
}

// TokenRefresherConfig configures the background token refresher.
type TokenRefresherConfig struct {
	Refresher ports.TokenRefresher
	Session   SessionSnapshotter
	// Interval between checks. Defaults to 5m.
	Interval time.Duration
	// Window is how close to expiry a session must be before it is refreshed.
	// Defaults to twice the interval.
	Window time.Duration
	Now    func() time.Time
	Logger *slog.Logger
}

// RunTokenRefresher renews the provider session shortly before it expires. Refresh
// failures are logged and retried on the next tick; the provider reports a failed
// refresh to the session manager through its own events.
func RunTokenRefresher(ctx context.Context, cfg TokenRefresherConfig) error {
	if cfg.Refresher == nil || cfg.Session == nil {
		return errors.New("token refresher requires a refresher and a session")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	window := cfg.Window
	if window <= 0 {
		window = 2 * interval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "token_refresher")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			state := cfg.Session.Snapshot()
			if !refreshDue(state, now(), window) {
				continue
			}
			refreshCtx, cancel := context.WithTimeout(ctx, interval)
			err := cfg.Refresher.Refresh(refreshCtx)
			cancel()
			if err != nil {
				logger.WarnContext(ctx, "session refresh failed", "user_id", state.User.ID, "error", err)
				continue
			}
			logger.DebugContext(ctx, "session refreshed", "user_id", state.User.ID)
		}
	}
}

// refreshDue reports whether a signed-in session expires within window.
// Sessions without an expiry are never refreshed.
func refreshDue(state domainauth.State, now time.Time, window time.Duration) bool {
	if state.IsLoading || state.User == nil || state.Session == nil {
		return false
	}
	if state.Session.ExpiresAt.IsZero() {
		return false
	}
	return state.Session.ExpiresAt.Sub(now) <= window
}
