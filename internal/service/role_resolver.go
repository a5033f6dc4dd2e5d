package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
	"github.com/target/greenhouse/internal/ports"
)

// ErrRoleIntegrity indicates the role side table holds more than one row for a user.
var ErrRoleIntegrity = errors.New("role store integrity violation: multiple roles for user")

// RoleResolverOptions groups dependencies for RoleResolver.
type RoleResolverOptions struct {
	Store  ports.RoleStore
	Logger *slog.Logger
}

// RoleResolver looks up the single authorization role of a user.
// Every failure degrades to RoleNone so callers gate with least privilege.
type RoleResolver struct {
	store  ports.RoleStore
	logger *slog.Logger
	group  singleflight.Group
}

// NewRoleResolver constructs a RoleResolver.
func NewRoleResolver(opts RoleResolverOptions) (*RoleResolver, error) {
	if opts.Store == nil {
		return nil, errors.New("role store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "role_resolver")
	}
	return &RoleResolver{store: opts.Store, logger: logger}, nil
}

// Resolve returns the role for userID. Zero rows is a valid absent role (nil error).
// A transport failure or more than one row returns RoleNone with a non-nil error.
// Concurrent calls for the same user share one store round trip.
func (r *RoleResolver) Resolve(ctx context.Context, userID string) (domainauth.Role, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domainauth.RoleNone, nil
	}

	v, err, _ := r.group.Do(userID, func() (any, error) {
		return r.store.RolesForUser(ctx, userID)
	})
	if err != nil {
		r.logger.WarnContext(ctx, "role lookup failed; treating as no role",
			"user_id", userID,
			"error", err,
		)
		return domainauth.RoleNone, fmt.Errorf("resolve role for %s: %w", userID, err)
	}

	roles, _ := v.([]domainauth.Role)
	switch len(roles) {
	case 0:
		return domainauth.RoleNone, nil
	case 1:
		return roles[0], nil
	default:
		r.logger.ErrorContext(ctx, "multiple role rows for user; degrading to no role",
			"user_id", userID,
			"rows", len(roles),
		)
		return domainauth.RoleNone, fmt.Errorf("resolve role for %s: %w", userID, ErrRoleIntegrity)
	}
}
