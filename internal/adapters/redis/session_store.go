// Package redis provides Redis-based adapters for greenhouse session and notification state.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
	"github.com/target/greenhouse/internal/ports"
)

// DefaultRefreshWindow is how long a session carrying a refresh token is kept
// after its access token expires.
const DefaultRefreshWindow = 30 * 24 * time.Hour

// SessionStoreOptions configures a SessionStore.
type SessionStoreOptions struct {
	Prefix        string        // defaults to "session:"
	RefreshWindow time.Duration // defaults to DefaultRefreshWindow
	Now           func() time.Time
}

// SessionStore persists provider sessions per device key so a restart can restore them.
// Keys expire with the session; sessions that can be refreshed live for the refresh window.
type SessionStore struct {
	client        redis.UniversalClient
	prefix        string
	refreshWindow time.Duration
	now           func() time.Time
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(client redis.UniversalClient, opts SessionStoreOptions) *SessionStore {
	s := &SessionStore{
		client:        client,
		prefix:        opts.Prefix,
		refreshWindow: opts.RefreshWindow,
		now:           opts.Now,
	}
	if s.prefix == "" {
		s.prefix = "session:"
	}
	if s.refreshWindow <= 0 {
		s.refreshWindow = DefaultRefreshWindow
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ErrSessionExpired is returned when saving a session that can no longer be used.
var ErrSessionExpired = errors.New("session is expired")

func (s *SessionStore) ttl(sess domainauth.Session) (time.Duration, error) {
	if sess.RefreshToken != "" {
		return s.refreshWindow, nil
	}
	if sess.ExpiresAt.IsZero() {
		return 0, nil // no expiry
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return 0, ErrSessionExpired
	}
	return ttl, nil
}

// Save implements ports.SessionPersistence.
func (s *SessionStore) Save(ctx context.Context, deviceKey string, sess domainauth.Session) error {
	if deviceKey == "" {
		return errors.New("device key cannot be empty")
	}
	ttl, err := s.ttl(sess)
	if err != nil {
		return err
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if setErr := s.client.Set(ctx, s.prefix+deviceKey, data, ttl).Err(); setErr != nil {
		return fmt.Errorf("redis set: %w", setErr)
	}
	return nil
}

// Load implements ports.SessionPersistence. A missing key returns (nil, nil).
func (s *SessionStore) Load(ctx context.Context, deviceKey string) (*domainauth.Session, error) {
	if deviceKey == "" {
		return nil, nil
	}

	data, err := s.client.Get(ctx, s.prefix+deviceKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal(data, &sess); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}
	return &sess, nil
}

// Delete implements ports.SessionPersistence.
func (s *SessionStore) Delete(ctx context.Context, deviceKey string) error {
	if deviceKey == "" {
		return nil // Nothing to delete
	}
	if err := s.client.Del(ctx, s.prefix+deviceKey).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

var _ ports.SessionPersistence = (*SessionStore)(nil)
