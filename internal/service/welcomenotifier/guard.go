package welcomenotifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/target/greenhouse/internal/ports"
)

// Verdict is the guard's answer for one dispatch attempt.
type Verdict int

const (
	// VerdictProceed means the caller holds the claim and should dispatch.
	VerdictProceed Verdict = iota
	// VerdictClaimed means this process already handled the user.
	VerdictClaimed
	// VerdictDelivered means a previous process lifetime already delivered.
	VerdictDelivered
)

func (v Verdict) String() string {
	switch v {
	case VerdictProceed:
		return "proceed"
	case VerdictClaimed:
		return "claimed"
	case VerdictDelivered:
		return "delivered"
	default:
		return "unknown"
	}
}

// DispatchGuard is the two-tier idempotency guard for welcome notifications.
// The in-memory claim set short-circuits repeats within this process; the persisted
// flag is the source of truth across reloads and devices.
type DispatchGuard struct {
	flags ports.WelcomeFlagStore

	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewDispatchGuard constructs a guard over the persisted flag store.
func NewDispatchGuard(flags ports.WelcomeFlagStore) (*DispatchGuard, error) {
	if flags == nil {
		return nil, errors.New("welcome flag store is required")
	}
	return &DispatchGuard{
		flags:   flags,
		claimed: make(map[string]struct{}),
	}, nil
}

// claim atomically checks and records userID in the in-memory set.
// It reports false when the user was already claimed.
func (g *DispatchGuard) claim(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.claimed[userID]; ok {
		return false
	}
	g.claimed[userID] = struct{}{}
	return true
}

// Claimed reports whether userID was claimed in this process.
func (g *DispatchGuard) Claimed(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.claimed[userID]
	return ok
}

// Acquire runs the guard checks in order: in-memory claim, then persisted flag.
// The claim is taken before the flag read and is never released, so a failed
// dispatch is not retried within this process. A flag read error keeps the claim
// and is returned to the caller, who must not dispatch.
func (g *DispatchGuard) Acquire(ctx context.Context, userID string) (Verdict, error) {
	if !g.claim(userID) {
		return VerdictClaimed, nil
	}

	delivered, err := g.flags.Delivered(ctx, userID)
	if err != nil {
		return VerdictClaimed, fmt.Errorf("read welcome flag for %s: %w", userID, err)
	}
	if delivered {
		return VerdictDelivered, nil
	}
	return VerdictProceed, nil
}

// Confirm persists the delivered flag after a successful dispatch.
func (g *DispatchGuard) Confirm(ctx context.Context, userID string) error {
	if err := g.flags.MarkDelivered(ctx, userID); err != nil {
		return fmt.Errorf("persist welcome flag for %s: %w", userID, err)
	}
	return nil
}
