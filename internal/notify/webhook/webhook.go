// Package webhook delivers welcome notifications to an HTTP endpoint. The body carries the
// welcome payload plus a Slack-compatible "text" field so the same URL can point at a
// mail relay or an incoming Slack webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/target/greenhouse/internal/notify"
)

// Config captures the webhook delivery behaviour.
type Config struct {
	URL        string
	Username   string
	Timeout    time.Duration // per request, defaults to 5s
	RetryLimit int           // retries after the first attempt
	// InitialInterval seeds the exponential backoff. Defaults to 200ms.
	InitialInterval time.Duration
	Client          *http.Client
	Logger          *slog.Logger
}

// Client posts welcome notifications to a webhook.
type Client struct {
	url             string
	username        string
	retryLimit      int
	initialInterval time.Duration
	client          *http.Client
	logger          *slog.Logger
}

// NewClient builds a webhook client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("welcome webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := max(cfg.RetryLimit, 0)
	interval := cfg.InitialInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "welcome_webhook")
	}

	return &Client{
		url:             url,
		username:        fallbackString(strings.TrimSpace(cfg.Username), "greenhouse"),
		retryLimit:      retries,
		initialInterval: interval,
		client:          hc,
		logger:          logger,
	}, nil
}

// message is the JSON body posted to the webhook.
type message struct {
	notify.WelcomePayload
	Text     string `json:"text"`
	Username string `json:"username"`
}

// StatusError reports a non-2xx webhook response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("welcome webhook %d: %s", e.StatusCode, e.Body)
}

// Send posts the payload, retrying transport errors and retryable statuses with
// exponential backoff. Other 4xx responses are not retried.
func (c *Client) Send(ctx context.Context, payload notify.WelcomePayload) error {
	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode welcome payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval

	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		return struct{}{}, c.post(ctx, body)
	}
	_, err = backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.retryLimit+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.WarnContext(ctx, "welcome webhook attempt failed",
				"user_id", payload.UserID,
				"attempt", attempt,
				"retry_in", next,
				"error", err,
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("deliver welcome to %s: %w", payload.UserID, err)
	}
	return nil
}

func (c *Client) formatMessage(payload notify.WelcomePayload) message {
	if payload.Kind == "" {
		payload.Kind = notify.KindWelcome
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = time.Now()
	}

	text := strings.Builder{}
	text.WriteString("*Welcome to Greenhouse, ")
	text.WriteString(escapeText(fallbackString(payload.DisplayName, payload.Email)))
	text.WriteString("!*\n")
	text.WriteString("• Email: ")
	text.WriteString(escapeText(payload.Email))
	text.WriteString("\n• Signed in: ")
	text.WriteString(payload.OccurredAt.UTC().Format(time.RFC3339))

	return message{
		WelcomePayload: payload,
		Text:           text.String(),
		Username:       c.username,
	}
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create welcome request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("welcome request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return classifyStatus(resp)
}

// classifyStatus marks client errors permanent, except timeouts and throttling.
// A 429 honours Retry-After when given in seconds.
func classifyStatus(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return errors.Join(statusErr, backoff.RetryAfter(secs))
		}
		return statusErr
	case resp.StatusCode == http.StatusRequestTimeout:
		return statusErr
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return backoff.Permanent(statusErr)
	default:
		return statusErr
	}
}

func escapeText(value string) string {
	return strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	).Replace(value)
}

func fallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

var _ notify.Sink = (*Client)(nil)
