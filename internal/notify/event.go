package notify

import (
	"context"
	"time"
)

// Kind values recognised by downstream sinks.
const (
	KindWelcome = "welcome"
)

// WelcomePayload captures the canonical data we emit for a first sign-in welcome.
type WelcomePayload struct {
	Kind        string    `json:"kind"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name,omitempty"`
	DisplayName string    `json:"display_name"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Sink describes a destination capable of delivering welcome notifications.
type Sink interface {
	Send(ctx context.Context, payload WelcomePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload WelcomePayload) error

// Send implements the Sink interface.
func (f SinkFunc) Send(ctx context.Context, payload WelcomePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
