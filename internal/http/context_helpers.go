package httpx

import (
	"context"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
)

// stateKey is an unexported context key type to avoid collisions across packages.
type stateKey struct{}

// SetStateInContext returns a child context carrying the auth state the gate admitted.
func SetStateInContext(ctx context.Context, state domainauth.State) context.Context {
	return context.WithValue(ctx, stateKey{}, state)
}

// GetStateFromContext returns the admitted auth state and whether one was set.
func GetStateFromContext(ctx context.Context) (domainauth.State, bool) {
	st, ok := ctx.Value(stateKey{}).(domainauth.State)
	return st, ok
}
