// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
	"github.com/target/greenhouse/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider   = (*ScriptedProvider)(nil)
	_ ports.WelcomeFlagStore   = (*MemoryFlagStore)(nil)
	_ ports.SessionPersistence = (*MemorySessionPersistence)(nil)
	_ ports.Clock              = (*FixedClock)(nil)
)

// ScriptedProvider simulates an identity provider. Tests push events with Emit and
// control command outcomes through the *Func hooks.
type ScriptedProvider struct {
	hub *domainauth.EventHub

	CurrentSessionFunc func(ctx context.Context) (*domainauth.Session, error)
	SignInFunc         func(ctx context.Context, email, password string) error
	SignUpFunc         func(ctx context.Context, in ports.SignUpInput) error
	SignOutFunc        func(ctx context.Context) error

	// Restored is returned by CurrentSession when CurrentSessionFunc is nil.
	Restored *domainauth.Session

	mu       sync.Mutex
	signIns  []string
	signUps  []ports.SignUpInput
	signOuts int
}

// NewScriptedProvider creates a ScriptedProvider with no restored session.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{hub: domainauth.NewEventHub(64)}
}

func (p *ScriptedProvider) Subscribe() (func(), <-chan domainauth.Event) {
	return p.hub.Subscribe()
}

func (p *ScriptedProvider) CurrentSession(ctx context.Context) (*domainauth.Session, error) {
	if p.CurrentSessionFunc != nil {
		return p.CurrentSessionFunc(ctx)
	}
	return p.Restored, nil
}

func (p *ScriptedProvider) SignIn(ctx context.Context, email, password string) error {
	p.mu.Lock()
	p.signIns = append(p.signIns, email)
	p.mu.Unlock()
	if p.SignInFunc != nil {
		return p.SignInFunc(ctx, email, password)
	}
	return nil
}

func (p *ScriptedProvider) SignUp(ctx context.Context, in ports.SignUpInput) error {
	p.mu.Lock()
	p.signUps = append(p.signUps, in)
	p.mu.Unlock()
	if p.SignUpFunc != nil {
		return p.SignUpFunc(ctx, in)
	}
	return nil
}

func (p *ScriptedProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.signOuts++
	p.mu.Unlock()
	if p.SignOutFunc != nil {
		return p.SignOutFunc(ctx)
	}
	return nil
}

// Emit publishes an event to subscribers.
func (p *ScriptedProvider) Emit(ev domainauth.Event) error {
	return p.hub.Publish(ev)
}

// EmitSignedIn publishes a signed-in event for sess.
func (p *ScriptedProvider) EmitSignedIn(sess domainauth.Session) error {
	return p.Emit(domainauth.Event{Type: domainauth.EventSignedIn, Session: &sess})
}

// EmitSignedOut publishes a signed-out event.
func (p *ScriptedProvider) EmitSignedOut() error {
	return p.Emit(domainauth.Event{Type: domainauth.EventSignedOut})
}

// Subscribers reports how many listeners are attached.
func (p *ScriptedProvider) Subscribers() int { return p.hub.Subscribers() }

// SignIns returns the emails passed to SignIn so far.
func (p *ScriptedProvider) SignIns() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.signIns...)
}

// SignUps returns the inputs passed to SignUp so far.
func (p *ScriptedProvider) SignUps() []ports.SignUpInput {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ports.SignUpInput(nil), p.signUps...)
}

// SignOuts returns how many times SignOut was called.
func (p *ScriptedProvider) SignOuts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signOuts
}

// VerifiedSession builds a session for id with a verified email, for tests.
func VerifiedSession(id, email string) domainauth.Session {
	verified := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return domainauth.Session{
		AccessToken: "token-" + id,
		User: domainauth.User{
			ID:              id,
			Email:           email,
			EmailVerifiedAt: &verified,
		},
	}
}

// ErrInjected is returned by doubles configured to fail.
var ErrInjected = errors.New("injected failure")

// MemoryFlagStore is an in-memory welcome flag store for unit tests.
type MemoryFlagStore struct {
	mu        sync.Mutex
	delivered map[string]bool
	reads     int
	writes    int

	// ReadErr and WriteErr, when set, are returned by Delivered and MarkDelivered.
	ReadErr  error
	WriteErr error
}

// NewMemoryFlagStore creates an empty flag store.
func NewMemoryFlagStore() *MemoryFlagStore {
	return &MemoryFlagStore{delivered: make(map[string]bool)}
}

func (m *MemoryFlagStore) Delivered(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.ReadErr != nil {
		return false, m.ReadErr
	}
	return m.delivered[userID], nil
}

func (m *MemoryFlagStore) MarkDelivered(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.delivered[userID] = true
	return nil
}

// Set seeds the flag for userID.
func (m *MemoryFlagStore) Set(userID string, delivered bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered[userID] = delivered
}

// Reads returns how many times Delivered was called.
func (m *MemoryFlagStore) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Writes returns how many times MarkDelivered was called.
func (m *MemoryFlagStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// MemorySessionPersistence is an in-memory session persistence for unit tests.
type MemorySessionPersistence struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

// NewMemorySessionPersistence creates an empty store.
func NewMemorySessionPersistence() *MemorySessionPersistence {
	return &MemorySessionPersistence{sessions: make(map[string]domainauth.Session)}
}

func (m *MemorySessionPersistence) Save(_ context.Context, deviceKey string, sess domainauth.Session) error {
	if deviceKey == "" {
		return errors.New("device key cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[deviceKey] = sess
	return nil
}

func (m *MemorySessionPersistence) Load(_ context.Context, deviceKey string) (*domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[deviceKey]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (m *MemorySessionPersistence) Delete(_ context.Context, deviceKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, deviceKey)
	return nil
}

// FixedClock returns a settable instant.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock creates a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{t: t} }

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
