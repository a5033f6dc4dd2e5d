package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Identity provider, role store and session persistence
//   - database.go: Database and Redis configuration
//   - http.go: HTTP server configuration
//   - services.go: Service mode configuration
//   - welcome.go: Welcome notification delivery
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Auth AuthConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	Welcome WelcomeConfig `envPrefix:"WELCOME_"`

	// Services is a comma-delimited list of services to run.
	Services string `env:"SERVICES" envDefault:"http,token-refresher"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Auth.Sanitize()
	c.HTTP.Sanitize()
	c.Welcome.Sanitize()
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// Validate reports configuration combinations that cannot start.
func (c *AppConfig) Validate() error {
	var errs []error
	if _, err := c.GetEnabledServices(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Auth.Validate(c.IsDev); err != nil {
		errs = append(errs, err)
	}
	if err := c.Welcome.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.IsHTTPServerEnabled() {
		if err := c.HTTP.Validate(c.IsDev); err != nil {
			errs = append(errs, err)
		}
	}
	if c.NeedsPostgres() && c.Postgres.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required for the postgres role or welcome flag store"))
	}
	return errors.Join(errs...)
}

// NeedsPostgres reports whether any component is backed by Postgres.
func (c *AppConfig) NeedsPostgres() bool {
	return c.Auth.RoleStore == RoleStorePostgres || c.Welcome.FlagStore == FlagStorePostgres
}

// NeedsRedis reports whether any component is backed by Redis.
func (c *AppConfig) NeedsRedis() bool {
	return c.Welcome.FlagStore == FlagStoreRedis || c.Auth.SessionStore == SessionStoreRedis
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	services, err := ParseServices(c.Services)
	if err != nil {
		return nil, fmt.Errorf("SERVICES: %w", err)
	}
	return services, nil
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsTokenRefresherEnabled returns true if the token refresher service is enabled.
func (c *AppConfig) IsTokenRefresherEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeTokenRefresher]
}
