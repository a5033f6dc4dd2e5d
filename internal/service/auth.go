package service

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/idna"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
	apperrors "github.com/target/greenhouse/internal/errors"
	"github.com/target/greenhouse/internal/ports"
)

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 6

const maxEmailLength = 254

// NormalizeEmail trims and lower-cases an address and converts its domain to ASCII.
// Malformed input yields a validation error suitable for display.
func NormalizeEmail(raw string) (string, error) {
	addr := strings.ToLower(strings.TrimSpace(raw))
	invalid := apperrors.ValidationField("email", "Enter a valid email address.")
	if addr == "" || len(addr) > maxEmailLength || strings.ContainsAny(addr, " \t\r\n") {
		return "", invalid
	}

	at := strings.LastIndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 || strings.Count(addr, "@") != 1 {
		return "", invalid
	}
	local, domain := addr[:at], addr[at+1:]

	asciiDomain, err := idna.Lookup.ToASCII(domain)
	if err != nil || !strings.Contains(asciiDomain, ".") || strings.HasPrefix(asciiDomain, ".") || strings.HasSuffix(asciiDomain, ".") {
		return "", invalid
	}
	return local + "@" + asciiDomain, nil
}

// SignIn validates and forwards credentials to the identity provider. State changes
// arrive later as provider events; a rejected sign-in leaves the state untouched.
func (m *SessionManager) SignIn(ctx context.Context, email, password string) error {
	addr, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	if password == "" {
		return apperrors.ValidationField("password", "Enter your password.")
	}

	if err := m.provider.SignIn(ctx, addr, password); err != nil {
		return m.credentialError(ctx, "sign in", err)
	}
	return nil
}

// SignUp validates the form and creates the account with the provider. The full name
// is stored in signup metadata.
func (m *SessionManager) SignUp(ctx context.Context, in ports.SignUpInput) error {
	addr, err := NormalizeEmail(in.Email)
	if err != nil {
		return err
	}
	if len(in.Password) < MinPasswordLength {
		return apperrors.ValidationField("password",
			fmt.Sprintf("Password must be at least %d characters.", MinPasswordLength))
	}

	err = m.provider.SignUp(ctx, ports.SignUpInput{
		Email:    addr,
		Password: in.Password,
		FullName: strings.TrimSpace(in.FullName),
	})
	if err != nil {
		return m.credentialError(ctx, "sign up", err)
	}
	return nil
}

// SignOut ends the provider session; the signed-out event clears the state.
func (m *SessionManager) SignOut(ctx context.Context) error {
	if err := m.provider.SignOut(ctx); err != nil {
		return m.credentialError(ctx, "sign out", err)
	}
	return nil
}

// CurrentUser returns the signed-in user, if any.
func (m *SessionManager) CurrentUser() (domainauth.User, bool) {
	st := m.Snapshot()
	if st.User == nil {
		return domainauth.User{}, false
	}
	return *st.User, true
}

// credentialError keeps provider AppErrors (already user-facing) and hides anything
// else behind a generic unavailable message.
func (m *SessionManager) credentialError(ctx context.Context, op string, err error) error {
	if apperrors.GetCode(err) != "" {
		m.logger.InfoContext(ctx, op+" rejected", "code", string(apperrors.GetCode(err)))
		return err
	}
	m.logger.WarnContext(ctx, op+" failed", "error", err)
	return apperrors.Wrap(err, apperrors.ErrCodeUnavailable,
		"We couldn't reach the sign-in service. Please try again.")
}
