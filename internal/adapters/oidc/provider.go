// Package oidc provides an OIDC/OAuth2 identity provider adapter for the greenhouse client.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
	apperrors "github.com/target/greenhouse/internal/errors"
	"github.com/target/greenhouse/internal/ports"
)

// Provider implements ports.IdentityProvider using the OAuth2 password grant and
// verified OIDC id_tokens.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client

	// go-oidc provider and verifier
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier

	hub         *domainauth.EventHub
	persistence ports.SessionPersistence
	deviceKey   string
	now         func() time.Time
	logger      *slog.Logger

	mu      sync.Mutex
	current *domainauth.Session
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	DiscoveryURL string
	HTTPClient   *http.Client // Optional, defaults to a 30s timeout client
	Persistence  ports.SessionPersistence
	DeviceKey    string
	Clock        ports.Clock
	Logger       *slog.Logger
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider creates a new OIDC provider.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default().With("component", "oidc_provider")
	}
	now := time.Now
	if config.Clock != nil {
		now = config.Clock.Now
	}
	deviceKey := config.DeviceKey
	if deviceKey == "" {
		deviceKey = "default"
	}

	p := &Provider{
		httpClient:  httpClient,
		hub:         domainauth.NewEventHub(0),
		persistence: config.Persistence,
		deviceKey:   deviceKey,
		now:         now,
		logger:      logger,
	}

	// Initialize go-oidc provider and verifier (single discovery fetch)
	ctx := p.clientContext(context.Background())
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID, Now: now})

	scopes := strings.Fields(config.Scope)
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email", gooidc.ScopeOfflineAccess}
	}
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       scopes,
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// Subscribe implements ports.IdentityProvider.
func (p *Provider) Subscribe() (func(), <-chan domainauth.Event) {
	return p.hub.Subscribe()
}

// CurrentSession returns the active session. After a restart the persisted session is
// used, refreshing it first when the access token has expired.
func (p *Provider) CurrentSession(ctx context.Context) (*domainauth.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		sess := *p.current
		return &sess, nil
	}
	if p.persistence == nil {
		return nil, nil
	}

	stored, err := p.persistence.Load(ctx, p.deviceKey)
	if err != nil {
		return nil, fmt.Errorf("load persisted session: %w", err)
	}
	if stored == nil {
		return nil, nil
	}

	if stored.Expired(p.now()) {
		if stored.RefreshToken == "" {
			p.forgetLocked(ctx)
			return nil, nil
		}
		refreshed, refreshErr := p.refreshLocked(ctx, stored)
		if refreshErr != nil {
			p.logger.InfoContext(ctx, "persisted session could not be refreshed", "error", refreshErr)
			p.forgetLocked(ctx)
			return nil, nil
		}
		stored = refreshed
	}

	p.current = stored
	p.persistLocked(ctx)
	sess := *stored
	return &sess, nil
}

// SignIn exchanges the credentials for tokens with the password grant.
func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	tok, err := p.config.PasswordCredentialsToken(p.clientContext(ctx), email, password)
	if err != nil {
		return mapTokenError(err)
	}

	sess, err := p.sessionFromToken(ctx, tok, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "The identity provider returned an invalid response.")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = sess
	p.persistLocked(ctx)
	p.publishLocked(domainauth.EventSignedIn)
	return nil
}

// SignUp is not offered by OIDC providers through this client.
func (p *Provider) SignUp(context.Context, ports.SignUpInput) error {
	return apperrors.Validation("Accounts are created with your identity provider.")
}

// SignOut drops the local session.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.forgetLocked(ctx)
	p.publishLocked(domainauth.EventSignedOut)
	return nil
}

// Refresh renews the active session with its refresh token and emits token-refreshed.
// A rejected refresh token ends the session.
func (p *Provider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil || p.current.RefreshToken == "" {
		return nil
	}
	sess, err := p.refreshLocked(ctx, p.current)
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			p.logger.InfoContext(ctx, "refresh token rejected; signing out", "user_id", p.current.User.ID)
			p.forgetLocked(ctx)
			p.publishLocked(domainauth.EventSignedOut)
			return nil
		}
		return err
	}
	p.current = sess
	p.persistLocked(ctx)
	p.publishLocked(domainauth.EventTokenRefreshed)
	return nil
}

func (p *Provider) refreshLocked(ctx context.Context, prev *domainauth.Session) (*domainauth.Session, error) {
	src := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: prev.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, mapTokenError(err)
	}
	return p.sessionFromToken(ctx, tok, prev)
}

// sessionFromToken builds a session from a token response. When the response carries
// no id_token (common on refresh) the previous user is kept.
func (p *Provider) sessionFromToken(ctx context.Context, tok *oauth2.Token, prev *domainauth.Session) (*domainauth.Session, error) {
	sess := &domainauth.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = p.now().Add(time.Hour)
	}
	if prev != nil && sess.RefreshToken == "" {
		sess.RefreshToken = prev.RefreshToken
	}

	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		if prev == nil {
			return nil, err
		}
		sess.User = prev.User
		return sess, nil
	}

	idTok, err := p.verifier.Verify(p.clientContext(ctx), rawID)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	var claims idTokenClaims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return nil, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if claims.Email == "" {
		if fillErr := p.fillFromUserInfo(ctx, tok, &claims); fillErr != nil {
			return nil, fmt.Errorf("get user info: %w", fillErr)
		}
	}
	sess.User = mapClaims(claims, idTok.IssuedAt)
	if sess.User.ID == "" {
		return nil, errors.New("id_token has no subject")
	}
	return sess, nil
}

func (p *Provider) fillFromUserInfo(ctx context.Context, tok *oauth2.Token, c *idTokenClaims) error {
	ui, err := p.oidcProvider.UserInfo(p.clientContext(ctx), oauth2.StaticTokenSource(tok))
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}
	var extra idTokenClaims
	if claimsErr := ui.Claims(&extra); claimsErr != nil {
		return fmt.Errorf("decode user info: %w", claimsErr)
	}
	c.Email = firstNonEmpty(c.Email, ui.Email, extra.Email)
	if !c.EmailVerified {
		c.EmailVerified = ui.EmailVerified
	}
	c.Name = firstNonEmpty(c.Name, extra.Name)
	return nil
}

func (p *Provider) persistLocked(ctx context.Context) {
	if p.persistence == nil || p.current == nil {
		return
	}
	if err := p.persistence.Save(ctx, p.deviceKey, *p.current); err != nil {
		p.logger.WarnContext(ctx, "persist session failed", "error", err)
	}
}

func (p *Provider) forgetLocked(ctx context.Context) {
	p.current = nil
	if p.persistence == nil {
		return
	}
	if err := p.persistence.Delete(ctx, p.deviceKey); err != nil {
		p.logger.WarnContext(ctx, "delete persisted session failed", "error", err)
	}
}

func (p *Provider) publishLocked(t domainauth.EventType) {
	var sess *domainauth.Session
	if p.current != nil {
		cp := *p.current
		sess = &cp
	}
	if err := p.hub.Publish(domainauth.Event{Type: t, Session: sess}); err != nil {
		p.logger.Warn("publish session event failed", "event", t, "error", err)
	}
}

// Close stops event delivery.
func (p *Provider) Close() {
	p.hub.StopAll()
}

// mapTokenError turns token endpoint rejections into credential errors and anything
// else into an unavailable error.
func mapTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch re.ErrorCode {
		case "invalid_grant", "invalid_client", "unauthorized_client":
			return apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "Invalid email or password.")
		}
	}
	return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "We couldn't reach the identity provider. Please try again.")
}

// idTokenClaims is the subset of standard OIDC claims we consume.
type idTokenClaims struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	Name              string `json:"name"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	PreferredUsername string `json:"preferred_username"`
}

// mapClaims maps id token claims into a domain user. Verification time is
// approximated by the token's issue time.
func mapClaims(c idTokenClaims, issuedAt time.Time) domainauth.User {
	u := domainauth.User{
		ID:    c.Sub,
		Email: strings.ToLower(strings.TrimSpace(c.Email)),
	}
	if c.EmailVerified {
		t := issuedAt.UTC()
		u.EmailVerifiedAt = &t
	}

	name := firstNonEmpty(c.Name, strings.TrimSpace(c.GivenName+" "+c.FamilyName))
	md := map[string]any{}
	if name != "" {
		md[domainauth.MetadataFullName] = name
	}
	if c.PreferredUsername != "" {
		md["preferred_username"] = c.PreferredUsername
	}
	if len(md) > 0 {
		u.Metadata = md
	}
	return u
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}

var (
	_ ports.IdentityProvider = (*Provider)(nil)
	_ ports.TokenRefresher   = (*Provider)(nil)
)
