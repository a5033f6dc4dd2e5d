package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// WelcomeTransportKind selects how welcome notifications are delivered.
type WelcomeTransportKind string

const (
	WelcomeTransportWebhook WelcomeTransportKind = "webhook"
	WelcomeTransportLog     WelcomeTransportKind = "log"
)

// UnmarshalText implements encoding.TextUnmarshaler for WelcomeTransportKind.
func (k *WelcomeTransportKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "webhook", "log":
		*k = WelcomeTransportKind(v)
		return nil
	default:
		return fmt.Errorf("invalid WelcomeTransport: %q (valid options: webhook, log)", v)
	}
}

// FlagStoreKind selects where delivered welcome flags are persisted.
type FlagStoreKind string

const (
	FlagStorePostgres FlagStoreKind = "postgres"
	FlagStoreRedis    FlagStoreKind = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for FlagStoreKind.
func (k *FlagStoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "postgres", "redis":
		*k = FlagStoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid WelcomeFlagStore: %q (valid options: postgres, redis)", v)
	}
}

// WelcomeConfig controls first sign-in welcome notifications.
type WelcomeConfig struct {
	Enabled    bool                 `env:"ENABLED"     envDefault:"true"`
	Transport  WelcomeTransportKind `env:"TRANSPORT"   envDefault:"log"`
	WebhookURL string               `env:"WEBHOOK_URL"`
	Username   string               `env:"USERNAME"    envDefault:"greenhouse"`
	Timeout    time.Duration        `env:"TIMEOUT"     envDefault:"5s"`
	RetryLimit int                  `env:"RETRY_LIMIT" envDefault:"3"`
	FlagStore  FlagStoreKind        `env:"FLAG_STORE"  envDefault:"postgres"`
}

// Sanitize normalises notification configuration values.
func (c *WelcomeConfig) Sanitize() {
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
}

// Validate checks transport requirements.
func (c *WelcomeConfig) Validate() error {
	if c.Enabled && c.Transport == WelcomeTransportWebhook && c.WebhookURL == "" {
		return errors.New("WELCOME_WEBHOOK_URL is required when WELCOME_TRANSPORT=webhook")
	}
	return nil
}
