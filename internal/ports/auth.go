// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.
package ports

import (
	"context"
	"time"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
	"github.com/target/greenhouse/internal/notify"
)

// SignUpInput carries inputs for creating an account.
type SignUpInput struct {
	Email    string
	Password string
	FullName string
}

// IdentityProvider is the external identity service. It owns credential checks and
// emits session lifecycle events; the session manager only consumes them.
type IdentityProvider interface {
	// Subscribe registers for session events, delivered in emission order.
	Subscribe() (func(), <-chan domainauth.Event)

	// CurrentSession is the one-shot restore check used at startup. A nil session means none.
	CurrentSession(ctx context.Context) (*domainauth.Session, error)

	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, in SignUpInput) error
	SignOut(ctx context.Context) error
}

// TokenRefresher is implemented by providers able to renew the active session.
// A successful refresh emits a token-refreshed event.
type TokenRefresher interface {
	Refresh(ctx context.Context) error
}

// RoleStore is the side table mapping user ids to roles.
// It returns every row found; callers enforce the at-most-one invariant.
type RoleStore interface {
	RolesForUser(ctx context.Context, userID string) ([]domainauth.Role, error)
}

// WelcomeTransport delivers the welcome notification.
type WelcomeTransport interface {
	Send(ctx context.Context, payload notify.WelcomePayload) error
}

// WelcomeFlagStore persists whether the welcome notification was delivered to an account.
type WelcomeFlagStore interface {
	Delivered(ctx context.Context, userID string) (bool, error)
	MarkDelivered(ctx context.Context, userID string) error
}

// SessionPersistence keeps a provider session across process restarts, keyed by device.
type SessionPersistence interface {
	Save(ctx context.Context, deviceKey string, sess domainauth.Session) error
	// Load returns (nil, nil) when nothing is stored.
	Load(ctx context.Context, deviceKey string) (*domainauth.Session, error)
	Delete(ctx context.Context, deviceKey string) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
