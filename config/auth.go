package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses an OIDC provider with the password grant.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses the in-process dev identity provider (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// RoleStoreKind selects where role rows are read from.
type RoleStoreKind string

const (
	RoleStorePostgres RoleStoreKind = "postgres"
	RoleStoreStatic   RoleStoreKind = "static"
)

// UnmarshalText implements encoding.TextUnmarshaler for RoleStoreKind.
func (k *RoleStoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "postgres", "static":
		*k = RoleStoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid RoleStore: %q (valid options: postgres, static)", v)
	}
}

// SessionStoreKind selects where provider sessions are persisted across restarts.
type SessionStoreKind string

const (
	SessionStoreNone  SessionStoreKind = "none"
	SessionStoreRedis SessionStoreKind = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionStoreKind.
func (k *SessionStoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "none", "redis":
		*k = SessionStoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionStore: %q (valid options: none, redis)", v)
	}
}

// OAuthConfig contains OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"greenhouse"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email offline_access"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
}

// DevAuthConfig controls the dev identity provider.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID          string        `env:"USER_ID"          envDefault:"dev-user"`
	Email           string        `env:"EMAIL"            envDefault:"dev@example.com"`
	Password        string        `env:"PASSWORD"         envDefault:"greenhouse"`
	FullName        string        `env:"FULL_NAME"        envDefault:"Dev Gardener"`
	Verified        bool          `env:"VERIFIED"         envDefault:"true"`
	TokenSecret     string        `env:"TOKEN_SECRET"`
	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"8h"`
	AutoConfirm     bool          `env:"AUTO_CONFIRM"     envDefault:"false"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	OAuth   OAuthConfig   `envPrefix:"OAUTH_"`
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// RoleStore selects the role side table. Static serves AdminUsers and Users.
	RoleStore  RoleStoreKind `env:"AUTH_ROLE_STORE"  envDefault:"postgres"`
	AdminUsers []string      `env:"AUTH_ADMIN_USERS" envSeparator:","`
	Users      []string      `env:"AUTH_USER_USERS"  envSeparator:","`

	// DisplayNameExpr is a JMESPath expression over {id, email, metadata}.
	DisplayNameExpr string `env:"AUTH_DISPLAY_NAME_EXPR" envDefault:"metadata.full_name || metadata.name"`

	SessionStore SessionStoreKind `env:"AUTH_SESSION_STORE" envDefault:"none"`
	DeviceKey    string           `env:"AUTH_DEVICE_KEY"    envDefault:"default"`

	RoleTimeout     time.Duration `env:"AUTH_ROLE_TIMEOUT"     envDefault:"10s"`
	RefreshInterval time.Duration `env:"AUTH_REFRESH_INTERVAL" envDefault:"5m"`
}

// Sanitize trims list entries and restores defaults for non-positive durations.
func (a *AuthConfig) Sanitize() {
	a.AdminUsers = trimList(a.AdminUsers)
	a.Users = trimList(a.Users)
	a.OAuth.DiscoveryURL = strings.TrimSpace(a.OAuth.DiscoveryURL)
	a.DeviceKey = strings.TrimSpace(a.DeviceKey)
	if a.DeviceKey == "" {
		a.DeviceKey = "default"
	}
	if a.RoleTimeout <= 0 {
		a.RoleTimeout = 10 * time.Second
	}
	if a.RefreshInterval <= 0 {
		a.RefreshInterval = 5 * time.Minute
	}
	if a.DevAuth.SessionDuration <= 0 {
		a.DevAuth.SessionDuration = 8 * time.Hour
	}
}

// Validate checks mode-specific requirements.
func (a *AuthConfig) Validate(isDev bool) error {
	var errs []error
	switch a.Mode {
	case AuthModeOAuth:
		if a.OAuth.DiscoveryURL == "" {
			errs = append(errs, errors.New("OAUTH_DISCOVERY_URL is required when AUTH_MODE=oauth"))
		}
		if a.OAuth.ClientID == "" {
			errs = append(errs, errors.New("OAUTH_CLIENT_ID is required when AUTH_MODE=oauth"))
		}
	case AuthModeMock:
		if !isDev {
			errs = append(errs, errors.New("AUTH_MODE=mock requires DEV=true"))
		}
		if len(a.DevAuth.TokenSecret) < 16 {
			errs = append(errs, errors.New("DEV_AUTH_TOKEN_SECRET must be at least 16 characters"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_MODE %q", a.Mode))
	}
	return errors.Join(errs...)
}

func trimList(in []string) []string {
	out := in[:0]
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
