package service

import (
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
)

// DefaultDisplayNameExpr picks the signup full name, then a provider "name" claim.
const DefaultDisplayNameExpr = "metadata.full_name || metadata.name"

// DisplayNameResolver extracts a user's display name from provider metadata with a
// JMESPath expression evaluated against {id, email, metadata}.
type DisplayNameResolver struct {
	expr string
}

// NewDisplayNameResolver validates expr. An empty expr selects DefaultDisplayNameExpr.
func NewDisplayNameResolver(expr string) (*DisplayNameResolver, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultDisplayNameExpr
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, fmt.Errorf("compile display name expression %q: %w", expr, err)
	}
	return &DisplayNameResolver{expr: expr}, nil
}

// Resolve returns the display name for u, or "" when the expression yields nothing usable.
// A nil resolver falls back to the full_name metadata key.
func (r *DisplayNameResolver) Resolve(u domainauth.User) string {
	if r == nil {
		return u.FullName()
	}
	data := map[string]any{
		"id":       u.ID,
		"email":    u.Email,
		"metadata": u.Metadata,
	}
	v, err := jmespath.Search(r.expr, data)
	if err != nil {
		return u.FullName()
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return u.FullName()
}
