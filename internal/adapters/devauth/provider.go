// Package devauth provides a simple, config-driven IdentityProvider for local development.
package devauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
	apperrors "github.com/target/greenhouse/internal/errors"
	"github.com/target/greenhouse/internal/ports"
)

const tokenIssuer = "greenhouse-devauth"

// SeedAccount is an account available at startup.
type SeedAccount struct {
	UserID   string
	Email    string
	Password string
	FullName string
	Verified bool
}

// Config controls the dev auth provider behavior.
// TokenSecret is required; everything else has a default.
type Config struct {
	Seed            []SeedAccount
	TokenSecret     string
	SessionDuration time.Duration // default 8h when zero
	// AutoConfirm marks new sign-ups as email-verified immediately.
	AutoConfirm bool
	// Persistence and DeviceKey let a restarted process restore the last session.
	Persistence ports.SessionPersistence
	DeviceKey   string
	BcryptCost  int
	Clock       ports.Clock
	Logger      *slog.Logger
}

type account struct {
	id           string
	email        string
	passwordHash []byte
	fullName     string
	verifiedAt   *time.Time
}

func (a *account) user() domainauth.User {
	u := domainauth.User{ID: a.id, Email: a.email}
	if a.verifiedAt != nil {
		t := *a.verifiedAt
		u.EmailVerifiedAt = &t
	}
	if a.fullName != "" {
		u.Metadata = map[string]any{domainauth.MetadataFullName: a.fullName}
	}
	return u
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Provider implements ports.IdentityProvider for local development.
// Accounts live in memory, passwords are bcrypt hashes and sessions are HS256 tokens.
type Provider struct {
	hub         *domainauth.EventHub
	secret      []byte
	duration    time.Duration
	autoConfirm bool
	persistence ports.SessionPersistence
	deviceKey   string
	cost        int
	clock       ports.Clock
	logger      *slog.Logger

	mu       sync.Mutex
	accounts map[string]*account // keyed by email
	current  *domainauth.Session
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.TokenSecret) == "" {
		return nil, errors.New("dev auth: TokenSecret is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	clock := ports.SystemClock
	if cfg.Clock != nil {
		clock = cfg.Clock
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "devauth")
	}
	deviceKey := cfg.DeviceKey
	if deviceKey == "" {
		deviceKey = "default"
	}

	p := &Provider{
		hub:         domainauth.NewEventHub(0),
		secret:      []byte(cfg.TokenSecret),
		duration:    dur,
		autoConfirm: cfg.AutoConfirm,
		persistence: cfg.Persistence,
		deviceKey:   deviceKey,
		cost:        cost,
		clock:       clock,
		logger:      logger,
		accounts:    make(map[string]*account),
	}

	for _, seed := range cfg.Seed {
		if err := p.seed(seed); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Provider) seed(s SeedAccount) error {
	email := strings.ToLower(strings.TrimSpace(s.Email))
	if email == "" || s.Password == "" {
		return errors.New("dev auth: seed accounts need Email and Password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(s.Password), p.cost)
	if err != nil {
		return fmt.Errorf("dev auth: hash seed password: %w", err)
	}
	id := s.UserID
	if id == "" {
		id = uuid.NewString()
	}
	acct := &account{id: id, email: email, passwordHash: hash, fullName: strings.TrimSpace(s.FullName)}
	if s.Verified {
		now := p.clock.Now().UTC()
		acct.verifiedAt = &now
	}
	p.accounts[email] = acct
	return nil
}

// Subscribe implements ports.IdentityProvider.
func (p *Provider) Subscribe() (func(), <-chan domainauth.Event) {
	return p.hub.Subscribe()
}

// CurrentSession returns the active session, restoring it from persistence when the
// process just started. Tokens that fail verification are discarded.
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

	acct, err := p.verifyToken(stored.AccessToken)
	if err != nil {
		p.logger.InfoContext(ctx, "discarding persisted session", "error", err)
		if delErr := p.persistence.Delete(ctx, p.deviceKey); delErr != nil {
			p.logger.WarnContext(ctx, "delete persisted session failed", "error", delErr)
		}
		return nil, nil
	}

	sess := *stored
	sess.User = acct.user()
	p.current = &sess
	out := sess
	return &out, nil
}

func (p *Provider) verifyToken(raw string) (*account, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(p.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify session token: %w", err)
	}
	acct, ok := p.accounts[strings.ToLower(claims.Email)]
	if !ok || acct.id != claims.Subject {
		return nil, errors.New("session token refers to an unknown account")
	}
	return acct, nil
}

func (p *Provider) issueLocked(ctx context.Context, acct *account) (*domainauth.Session, error) {
	now := p.clock.Now()
	expires := now.Add(p.duration)
	claims := sessionClaims{
		Email: acct.email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   acct.id,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	sess := &domainauth.Session{
		AccessToken:  token,
		RefreshToken: uuid.NewString(),
		ExpiresAt:    expires.Truncate(time.Second),
		User:         acct.user(),
	}
	p.current = sess
	p.persistLocked(ctx, *sess)
	return sess, nil
}

func (p *Provider) persistLocked(ctx context.Context, sess domainauth.Session) {
	if p.persistence == nil {
		return
	}
	if err := p.persistence.Save(ctx, p.deviceKey, sess); err != nil {
		p.logger.WarnContext(ctx, "persist session failed", "error", err)
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

// SignIn checks the password and starts a session.
func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)) != nil {
		return apperrors.Unauthorized("Invalid email or password.")
	}
	if _, err := p.issueLocked(ctx, acct); err != nil {
		return err
	}
	p.publishLocked(domainauth.EventSignedIn)
	return nil
}

// SignUp creates the account and signs it in. Unless AutoConfirm is set the email
// stays unverified until VerifyEmail is called.
func (p *Provider) SignUp(ctx context.Context, in ports.SignUpInput) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, exists := p.accounts[email]; exists {
		return apperrors.Conflict("An account with this email already exists.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	acct := &account{
		id:           uuid.NewString(),
		email:        email,
		passwordHash: hash,
		fullName:     strings.TrimSpace(in.FullName),
	}
	if p.autoConfirm {
		now := p.clock.Now().UTC()
		acct.verifiedAt = &now
	}
	p.accounts[email] = acct
	p.logger.InfoContext(ctx, "dev account created", "user_id", acct.id, "verified", p.autoConfirm)

	if _, err := p.issueLocked(ctx, acct); err != nil {
		return err
	}
	p.publishLocked(domainauth.EventSignedIn)
	return nil
}

// SignOut ends the session and forgets the persisted copy.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = nil
	if p.persistence != nil {
		if err := p.persistence.Delete(ctx, p.deviceKey); err != nil {
			p.logger.WarnContext(ctx, "delete persisted session failed", "error", err)
		}
	}
	p.publishLocked(domainauth.EventSignedOut)
	return nil
}

// Refresh re-issues the session token for the signed-in account.
func (p *Provider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil
	}
	acct, ok := p.accounts[p.current.User.Email]
	if !ok {
		return errors.New("dev auth: signed-in account no longer exists")
	}
	if _, err := p.issueLocked(ctx, acct); err != nil {
		return err
	}
	p.publishLocked(domainauth.EventTokenRefreshed)
	return nil
}

// VerifyEmail marks the account as verified, standing in for the confirmation link.
func (p *Provider) VerifyEmail(ctx context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return apperrors.NotFound("No account with this email.")
	}
	if acct.verifiedAt == nil {
		now := p.clock.Now().UTC()
		acct.verifiedAt = &now
	}
	if p.current != nil && p.current.User.ID == acct.id {
		p.current.User = acct.user()
		p.persistLocked(ctx, *p.current)
		p.publishLocked(domainauth.EventUserUpdated)
	}
	return nil
}

// BeginRecovery signs the account in through the recovery path, standing in for the
// reset link. The session manager surfaces it as a recovering state.
func (p *Provider) BeginRecovery(ctx context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		// Do not reveal whether the account exists.
		return nil
	}
	if _, err := p.issueLocked(ctx, acct); err != nil {
		return err
	}
	p.publishLocked(domainauth.EventPasswordRecovery)
	return nil
}

// UpdatePassword replaces the signed-in account's password.
func (p *Provider) UpdatePassword(ctx context.Context, password string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return apperrors.Unauthorized("Sign in to change your password.")
	}
	acct, ok := p.accounts[p.current.User.Email]
	if !ok {
		return apperrors.Unauthorized("Sign in to change your password.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	acct.passwordHash = hash
	p.logger.InfoContext(ctx, "dev account password updated", "user_id", acct.id)
	p.publishLocked(domainauth.EventUserUpdated)
	return nil
}

// Close stops event delivery.
func (p *Provider) Close() {
	p.hub.StopAll()
}

var (
	_ ports.IdentityProvider = (*Provider)(nil)
	_ ports.TokenRefresher   = (*Provider)(nil)
)
