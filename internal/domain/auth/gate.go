package auth

import (
	"net/url"
	"strings"
)

// RouteRequirement is the static access constraint declared by a route.
type RouteRequirement int

const (
	// RequireNone marks a public route.
	RequireNone RouteRequirement = iota
	// RequireUser admits verified users holding exactly the user role.
	RequireUser
	// RequireAdmin admits verified users holding the admin role.
	RequireAdmin
)

func (r RouteRequirement) String() string {
	switch r {
	case RequireNone:
		return "none"
	case RequireUser:
		return "user"
	case RequireAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// DecisionKind is the outcome class of a navigation decision.
type DecisionKind int

const (
	DecisionLoading DecisionKind = iota
	DecisionAllow
	DecisionRedirect
)

// Redirect reasons.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonEmailUnverified = "email_unverified"
	ReasonNotAdmin        = "not_admin"
	ReasonAdminExcluded   = "admin_excluded"
	ReasonRoleMissing     = "role_missing"
)

// Navigation targets used by redirects.
const (
	PathHome        = "/"
	PathAdmin       = "/admin"
	PathSignIn      = "/auth/sign-in"
	PathVerifyEmail = "/auth/verify-email"
)

// Decision is the result of gating one navigation.
type Decision struct {
	Kind   DecisionKind
	To     string
	Reason string
}

// Allowed reports whether navigation may proceed.
func (d Decision) Allowed() bool { return d.Kind == DecisionAllow }

// Decide gates a navigation to requested under req, given a snapshot of the auth state.
// Rules are evaluated in fixed order and the first match wins. Admin routes exclude
// non-admins; user routes exclude admins and anyone without an explicit user role.
// Public routes (RequireNone) bypass the table and are allowed even while loading.
func Decide(state State, req RouteRequirement, requested string) Decision {
	if req == RequireNone {
		return Decision{Kind: DecisionAllow}
	}
	if state.IsLoading {
		return Decision{Kind: DecisionLoading}
	}
	if state.User == nil {
		return redirect(SignInURL(requested), ReasonUnauthenticated)
	}
	if !state.User.EmailVerified() {
		return redirect(VerifyEmailURL(state.User.Email), ReasonEmailUnverified)
	}

	switch req {
	case RequireAdmin:
		if state.Role != RoleAdmin {
			return redirect(PathHome, ReasonNotAdmin)
		}
	case RequireUser:
		if state.Role == RoleAdmin {
			return redirect(PathAdmin, ReasonAdminExcluded)
		}
		if state.Role != RoleUser {
			return redirect(PathHome, ReasonRoleMissing)
		}
	default:
		// Unknown requirements fail closed.
		return redirect(PathHome, ReasonRoleMissing)
	}
	return Decision{Kind: DecisionAllow}
}

func redirect(to, reason string) Decision {
	return Decision{Kind: DecisionRedirect, To: to, Reason: reason}
}

// SignInURL builds the sign-in location preserving requested for post-login return.
// Only same-origin relative paths are preserved.
func SignInURL(requested string) string {
	target := SafeReturnPath(requested)
	if target == "" {
		return PathSignIn
	}
	return PathSignIn + "?redirect_uri=" + url.QueryEscape(target)
}

// VerifyEmailURL builds the verification holding page location for email.
func VerifyEmailURL(email string) string {
	if email == "" {
		return PathVerifyEmail
	}
	return PathVerifyEmail + "?email=" + url.QueryEscape(email)
}

// SafeReturnPath returns p when it is a local absolute path, otherwise "".
func SafeReturnPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return ""
	}
	u, err := url.Parse(p)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	return p
}
