package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to. Every client that reaches it
	// acts with the one signed-in session, so it defaults to loopback.
	Addr string `env:"HTTP_ADDR" envDefault:"127.0.0.1:8080"`

	// AllowRemote permits a non-loopback Addr outside development.
	AllowRemote bool `env:"HTTP_ALLOW_REMOTE" envDefault:"false"`

	// BaseURL is the base URL of the application (e.g., "https://app.example.com").
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// SignInRate is the sustained sign-in/sign-up attempts per second per client.
	SignInRate float64 `env:"HTTP_SIGNIN_RATE" envDefault:"1"`
	// SignInBurst is the burst allowance for sign-in/sign-up attempts.
	SignInBurst int `env:"HTTP_SIGNIN_BURST" envDefault:"5"`

	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.SignInRate <= 0 {
		h.SignInRate = 1
	}
	if h.SignInBurst < 1 {
		h.SignInBurst = 1
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 15 * time.Second
	}
}

// Validate rejects a non-loopback bind address outside development unless
// HTTP_ALLOW_REMOTE is set.
func (h *HTTPConfig) Validate(isDev bool) error {
	host, _, err := net.SplitHostPort(h.Addr)
	if err != nil {
		return fmt.Errorf("invalid HTTP_ADDR %q: %w", h.Addr, err)
	}
	if isDev || h.AllowRemote || IsLoopbackHost(host) {
		return nil
	}
	return errors.New("HTTP_ADDR must bind a loopback address (set HTTP_ALLOW_REMOTE=true to expose the signed-in session)")
}

// IsLoopbackHost reports whether host only accepts local connections.
// An empty host binds every interface.
func IsLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
