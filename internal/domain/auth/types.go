// Package auth contains domain-level types for authentication, sessions and navigation gating.
// It is pure and free of framework/adapter concerns.
package auth

import (
	"strings"
	"time"
)

// Role represents an application's authorization role.
// Keep string form for easy persistence. Valid values are defined as constants below;
// any other value (including RoleNone) grants no elevated access.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	// RoleNone is the absent role: no row, an unresolved lookup, or a failed one.
	RoleNone Role = ""
)

// IsKnown reports whether r is one of the roles the application grants access for.
func (r Role) IsKnown() bool {
	return r == RoleAdmin || r == RoleUser
}

// ParseRole normalises a stored role value. Unknown values are returned as-is
// so the gate can fail closed on them.
func ParseRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// MetadataFullName is the signup metadata key carrying the user's display name.
const MetadataFullName = "full_name"

// User is the identity carried by a provider session.
type User struct {
	ID              string         `json:"id"`
	Email           string         `json:"email"`
	EmailVerifiedAt *time.Time     `json:"email_verified_at,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// EmailVerified reports whether the provider has confirmed the user's email.
func (u User) EmailVerified() bool { return u.EmailVerifiedAt != nil }

// FullName returns the display name from signup metadata, or "" when absent.
func (u User) FullName() string {
	if u.Metadata == nil {
		return ""
	}
	name, _ := u.Metadata[MetadataFullName].(string)
	return strings.TrimSpace(name)
}

// Session is the provider-issued proof of an authenticated identity.
// Everything except User is opaque to the session core.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the session is past its expiry at now.
// A zero ExpiresAt never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// State is the canonical authorization state owned by the session manager.
// Consumers only ever see copies.
type State struct {
	User       *User
	Session    *Session
	Role       Role
	IsLoading  bool
	Recovering bool
	// RolePending is set while the current user's role lookup is outstanding.
	RolePending bool
	// Generation increments with every processed identity event.
	Generation uint64
}

// InitialState is the state before the first session restore completes.
func InitialState() State {
	return State{IsLoading: true}
}

// IsAdmin reports whether a present user holds the admin role.
func (s State) IsAdmin() bool {
	return s.User != nil && s.Role == RoleAdmin
}

// Authenticated reports whether a user is present.
func (s State) Authenticated() bool { return s.User != nil }

// Clone returns a deep-enough copy so callers cannot mutate manager-owned data.
func (s State) Clone() State {
	out := s
	if s.User != nil {
		u := cloneUser(*s.User)
		out.User = &u
	}
	if s.Session != nil {
		sess := *s.Session
		sess.User = cloneUser(s.Session.User)
		out.Session = &sess
	}
	return out
}

func cloneUser(u User) User {
	if u.EmailVerifiedAt != nil {
		t := *u.EmailVerifiedAt
		u.EmailVerifiedAt = &t
	}
	if u.Metadata != nil {
		md := make(map[string]any, len(u.Metadata))
		for k, v := range u.Metadata {
			md[k] = v
		}
		u.Metadata = md
	}
	return u
}
