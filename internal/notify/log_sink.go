package notify

import (
	"context"
	"log/slog"
)

// LogSink writes welcome notifications to a structured logger instead of delivering them.
// Used in development and when no webhook is configured.
type LogSink struct {
	Logger *slog.Logger
}

// Send implements the Sink interface.
func (s LogSink) Send(ctx context.Context, payload WelcomePayload) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default().With("component", "welcome_log_sink")
	}
	logger.InfoContext(ctx, "welcome notification",
		"kind", payload.Kind,
		"user_id", payload.UserID,
		"email", payload.Email,
		"display_name", payload.DisplayName,
		"occurred_at", payload.OccurredAt,
	)
	return nil
}
