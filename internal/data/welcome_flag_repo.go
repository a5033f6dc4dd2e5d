package data

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
	apperrors "github.com/target/greenhouse/internal/errors"
	"github.com/target/greenhouse/internal/ports"
)

// WelcomeFlagRepo persists delivered welcome notifications in welcome_notifications.
type WelcomeFlagRepo struct {
	DB    *sql.DB
	clock ports.Clock
}

// NewWelcomeFlagRepo creates a new welcome flag repository.
func NewWelcomeFlagRepo(db *sql.DB) *WelcomeFlagRepo {
	return &WelcomeFlagRepo{DB: db, clock: ports.SystemClock}
}

// NewWelcomeFlagRepoWithClock creates a repository that stamps deliveries with clock.
func NewWelcomeFlagRepoWithClock(db *sql.DB, clock ports.Clock) *WelcomeFlagRepo {
	if clock == nil {
		clock = ports.SystemClock
	}
	return &WelcomeFlagRepo{DB: db, clock: clock}
}

// Delivered implements ports.WelcomeFlagStore.
func (r *WelcomeFlagRepo) Delivered(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, ErrUserIDRequired
	}
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM welcome_notifications WHERE user_id = $1)`, userID,
	).Scan(&exists)
	if err != nil {
		return false, apperrors.MapDBError(err)
	}
	return exists, nil
}

// MarkDelivered implements ports.WelcomeFlagStore. Repeated calls keep the first timestamp.
func (r *WelcomeFlagRepo) MarkDelivered(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO welcome_notifications (user_id, delivered_at)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, r.clock.Now().UTC(),
	)
	if err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// Status returns the delivery record for userID.
func (r *WelcomeFlagRepo) Status(ctx context.Context, userID string) (domainauth.WelcomeRecord, error) {
	rec := domainauth.WelcomeRecord{UserID: userID}
	var at time.Time
	err := r.DB.QueryRowContext(ctx,
		`SELECT delivered_at FROM welcome_notifications WHERE user_id = $1`, userID,
	).Scan(&at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, nil
		}
		return rec, apperrors.MapDBError(err)
	}
	rec.Delivered = true
	rec.DeliveredAt = &at
	return rec, nil
}

// Reset removes the record so the next sign-in sends the welcome again.
func (r *WelcomeFlagRepo) Reset(ctx context.Context, userID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM welcome_notifications WHERE user_id = $1`, userID)
	if err != nil {
		return false, apperrors.MapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.MapDBError(err)
	}
	return n > 0, nil
}

var _ ports.WelcomeFlagStore = (*WelcomeFlagRepo)(nil)
