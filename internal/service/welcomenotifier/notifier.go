package welcomenotifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/target/greenhouse/internal/notify"
	"github.com/target/greenhouse/internal/ports"
)

// Outcome reports what NotifyIfNeeded did.
type Outcome int

const (
	// OutcomeSkipped: already claimed in this process; nothing was read or sent.
	OutcomeSkipped Outcome = iota
	// OutcomeAlreadyDelivered: the persisted flag was set; nothing was sent.
	OutcomeAlreadyDelivered
	// OutcomeDispatched: the transport accepted the notification.
	OutcomeDispatched
	// OutcomeFailed: nothing was delivered; a future process may retry.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeAlreadyDelivered:
		return "already_delivered"
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request identifies the account to welcome.
type Request struct {
	UserID   string
	Email    string
	FullName string
}

// Options configures the welcome notifier service.
type Options struct {
	Logger    *slog.Logger
	Transport ports.WelcomeTransport
	Flags     ports.WelcomeFlagStore
	Clock     ports.Clock
	// SendTimeout bounds a single transport call. Zero means 30s.
	SendTimeout time.Duration
}

// Service sends the welcome notification at most once per account.
type Service struct {
	logger      *slog.Logger
	transport   ports.WelcomeTransport
	guard       *DispatchGuard
	now         func() time.Time
	sendTimeout time.Duration
}

// NewService constructs a welcome notifier.
func NewService(opts Options) (*Service, error) {
	if opts.Transport == nil {
		return nil, errors.New("welcome transport is required")
	}
	guard, err := NewDispatchGuard(opts.Flags)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "welcome_notifier")
	}
	now := time.Now
	if opts.Clock != nil {
		now = opts.Clock.Now
	}
	timeout := opts.SendTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Service{
		logger:      logger,
		transport:   opts.Transport,
		guard:       guard,
		now:         now,
		sendTimeout: timeout,
	}, nil
}

// Guard exposes the dispatch guard (read-only use, e.g. diagnostics).
func (s *Service) Guard() *DispatchGuard { return s.guard }

// NotifyIfNeeded sends the welcome notification unless this process already handled
// the user or a previous lifetime delivered it. A transport failure leaves the
// persisted flag unset but keeps the in-memory claim: no retry happens until a
// fresh process.
func (s *Service) NotifyIfNeeded(ctx context.Context, req Request) (Outcome, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return OutcomeFailed, errors.New("welcome notification requires a user id")
	}

	verdict, err := s.guard.Acquire(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "welcome flag read failed; not sending", "user_id", userID, "error", err)
		return OutcomeFailed, err
	}
	switch verdict {
	case VerdictClaimed:
		return OutcomeSkipped, nil
	case VerdictDelivered:
		s.logger.DebugContext(ctx, "welcome already delivered", "user_id", userID)
		return OutcomeAlreadyDelivered, nil
	case VerdictProceed:
	}

	payload := notify.WelcomePayload{
		Kind:        notify.KindWelcome,
		UserID:      userID,
		Email:       strings.TrimSpace(req.Email),
		FullName:    strings.TrimSpace(req.FullName),
		DisplayName: displayName(req),
		OccurredAt:  s.now().UTC(),
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	err = s.transport.Send(sendCtx, payload)
	cancel()
	if err != nil {
		s.logger.ErrorContext(ctx, "welcome delivery failed",
			"user_id", userID,
			"error", err,
		)
		return OutcomeFailed, fmt.Errorf("send welcome: %w", err)
	}

	if err := s.guard.Confirm(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "welcome delivered but flag not persisted",
			"user_id", userID,
			"error", err,
		)
		return OutcomeDispatched, err
	}

	s.logger.InfoContext(ctx, "welcome delivered", "user_id", userID)
	return OutcomeDispatched, nil
}

// displayName prefers the signup name and falls back to the email local part.
func displayName(req Request) string {
	if name := strings.TrimSpace(req.FullName); name != "" {
		return name
	}
	email := strings.TrimSpace(req.Email)
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
