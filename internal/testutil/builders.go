package testutil

import (
	"time"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
)

// SessionBuilder provides a fluent interface for building provider sessions in tests.
type SessionBuilder struct {
	sess domainauth.Session
}

// NewSession creates a SessionBuilder for a verified user expiring an hour after TestTime.
func NewSession(userID string) *SessionBuilder {
	verified := TestTime().Add(-24 * time.Hour)
	return &SessionBuilder{sess: domainauth.Session{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    TestTime().Add(time.Hour),
		User: domainauth.User{
			ID:              userID,
			Email:           userID + "@example.com",
			EmailVerifiedAt: &verified,
		},
	}}
}

// WithEmail sets the user's email.
func (b *SessionBuilder) WithEmail(email string) *SessionBuilder {
	b.sess.User.Email = email
	return b
}

// Unverified clears the email verification timestamp.
func (b *SessionBuilder) Unverified() *SessionBuilder {
	b.sess.User.EmailVerifiedAt = nil
	return b
}

// WithFullName sets the signup full name metadata.
func (b *SessionBuilder) WithFullName(name string) *SessionBuilder {
	if b.sess.User.Metadata == nil {
		b.sess.User.Metadata = map[string]any{}
	}
	b.sess.User.Metadata[domainauth.MetadataFullName] = name
	return b
}

// ExpiresAt sets the session expiry.
func (b *SessionBuilder) ExpiresAt(t time.Time) *SessionBuilder {
	b.sess.ExpiresAt = t
	return b
}

// Build returns the constructed session.
func (b *SessionBuilder) Build() domainauth.Session {
	return b.sess
}

// StateFor builds a settled authorization state for sess with role.
func StateFor(sess domainauth.Session, role domainauth.Role) domainauth.State {
	user := sess.User
	return domainauth.State{User: &user, Session: &sess, Role: role, Generation: 1}
}

// LoadingState returns the state before the session restore completes.
func LoadingState() domainauth.State {
	return domainauth.InitialState()
}

// SignedOutState returns a settled state without a user.
func SignedOutState() domainauth.State {
	return domainauth.State{Generation: 1}
}
