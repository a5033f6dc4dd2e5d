package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/greenhouse/internal/ports"
)

// WelcomeFlagStore records delivered welcome notifications in Redis.
// Flags never expire; one key per account.
type WelcomeFlagStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewWelcomeFlagStore creates a flag store using the "welcome:sent:" key prefix.
func NewWelcomeFlagStore(client redis.UniversalClient) *WelcomeFlagStore {
	return &WelcomeFlagStore{client: client, prefix: "welcome:sent:", now: time.Now}
}

func (s *WelcomeFlagStore) key(userID string) string { return s.prefix + userID }

// Delivered implements ports.WelcomeFlagStore.
func (s *WelcomeFlagStore) Delivered(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, errors.New("user id cannot be empty")
	}
	n, err := s.client.Exists(ctx, s.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// MarkDelivered implements ports.WelcomeFlagStore. The first write wins so the
// stored timestamp is the earliest delivery.
func (s *WelcomeFlagStore) MarkDelivered(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id cannot be empty")
	}
	stamp := s.now().UTC().Format(time.RFC3339Nano)
	if err := s.client.SetNX(ctx, s.key(userID), stamp, 0).Err(); err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	return nil
}

// DeliveredAt returns when the flag was first written, or nil when it is unset.
func (s *WelcomeFlagStore) DeliveredAt(ctx context.Context, userID string) (*time.Time, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("parse delivered_at: %w", err)
	}
	return &t, nil
}

// Clear removes the flag so the next sign-in sends the welcome again.
func (s *WelcomeFlagStore) Clear(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return n > 0, nil
}

var _ ports.WelcomeFlagStore = (*WelcomeFlagStore)(nil)
