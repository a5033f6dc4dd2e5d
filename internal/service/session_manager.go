package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
	"github.com/target/greenhouse/internal/ports"
	"github.com/target/greenhouse/internal/service/welcomenotifier"
)

// RoleSource resolves a user's role. Errors come with RoleNone.
type RoleSource interface {
	Resolve(ctx context.Context, userID string) (domainauth.Role, error)
}

// WelcomeNotifier delivers the first sign-in notification at most once per account.
type WelcomeNotifier interface {
	NotifyIfNeeded(ctx context.Context, req welcomenotifier.Request) (welcomenotifier.Outcome, error)
}

// ErrSessionManagerStarted is returned when Start is called twice.
var ErrSessionManagerStarted = errors.New("session manager already started")

// ErrSessionManagerStopped is returned when Start is called after Stop.
var ErrSessionManagerStopped = errors.New("session manager stopped")

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Provider ports.IdentityProvider
	Roles    RoleSource
	// Welcome is optional; without it sign-ins trigger no notification.
	Welcome WelcomeNotifier
	Names   *DisplayNameResolver
	Clock   ports.Clock
	Logger  *slog.Logger
	// RoleTimeout bounds one role lookup. Zero means 10s.
	RoleTimeout time.Duration
	// WelcomeTimeout bounds one welcome attempt. Zero means 1m.
	WelcomeTimeout time.Duration
}

// SessionManager owns the canonical authorization state. It consumes provider events in
// emission order, resolves roles on generation-tagged goroutines and discards results that
// belong to an older generation or a different user.
type SessionManager struct {
	provider       ports.IdentityProvider
	roles          RoleSource
	welcome        WelcomeNotifier
	names          *DisplayNameResolver
	clock          ports.Clock
	logger         *slog.Logger
	roleTimeout    time.Duration
	welcomeTimeout time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	tasks   sync.WaitGroup

	mu       sync.Mutex
	state    domainauth.State
	started  bool
	stopped  bool
	restored bool
	// roleGen is the latest generation whose role resolution has completed.
	roleGen  uint64
	ready    chan struct{}
	unsub    func()
	loopDone chan struct{}
	watchers map[chan struct{}]struct{}
}

// NewSessionManager constructs a SessionManager in the initial loading state.
func NewSessionManager(opts SessionManagerOptions) (*SessionManager, error) {
	if opts.Provider == nil {
		return nil, errors.New("identity provider is required")
	}
	if opts.Roles == nil {
		return nil, errors.New("role source is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "session_manager")
	}
	clock := ports.SystemClock
	if opts.Clock != nil {
		clock = opts.Clock
	}
	roleTimeout := opts.RoleTimeout
	if roleTimeout <= 0 {
		roleTimeout = 10 * time.Second
	}
	welcomeTimeout := opts.WelcomeTimeout
	if welcomeTimeout <= 0 {
		welcomeTimeout = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		provider:       opts.Provider,
		roles:          opts.Roles,
		welcome:        opts.Welcome,
		names:          opts.Names,
		clock:          clock,
		logger:         logger,
		roleTimeout:    roleTimeout,
		welcomeTimeout: welcomeTimeout,
		baseCtx:        ctx,
		cancel:         cancel,
		state:          domainauth.InitialState(),
		ready:          make(chan struct{}),
		loopDone:       make(chan struct{}),
		watchers:       make(map[chan struct{}]struct{}),
	}, nil
}

// Start subscribes to provider events, performs the one-shot session restore and then
// processes events on a single goroutine. Events emitted while the restore runs are
// buffered and applied after it.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrSessionManagerStarted
	}
	if m.stopped {
		m.mu.Unlock()
		return ErrSessionManagerStopped
	}
	m.started = true
	unsub, events := m.provider.Subscribe()
	m.unsub = unsub
	m.mu.Unlock()

	m.applyRestore(m.restoreSession(ctx))

	go m.loop(events)
	return nil
}

func (m *SessionManager) restoreSession(ctx context.Context) *domainauth.Session {
	sess, err := m.provider.CurrentSession(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "session restore failed; starting signed out", "error", err)
		return nil
	}
	if sess == nil {
		return nil
	}
	if sess.Expired(m.clock.Now()) {
		m.logger.InfoContext(ctx, "restored session expired; starting signed out",
			"user_id", sess.User.ID,
			"expired_at", sess.ExpiresAt,
		)
		return nil
	}
	return sess
}

func (m *SessionManager) applyRestore(sess *domainauth.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.restored = true
	if sess != nil {
		m.advanceLocked(domainauth.Event{Type: domainauth.EventSessionRestored, Session: sess})
	}
	m.settleLocked()
}

func (m *SessionManager) loop(events <-chan domainauth.Event) {
	defer close(m.loopDone)
	for ev := range events {
		m.handleEvent(ev)
	}
}

// handleEvent applies one event. A panic is logged and the loop keeps running.
func (m *SessionManager) handleEvent(ev domainauth.Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("session event handler panicked", "event", ev.Type, "panic", r)
		}
	}()

	func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.advanceLocked(ev)
		m.settleLocked()
	}()

	if ev.IsSignIn() {
		m.triggerWelcome(ev.Session.User)
	}
}

// advanceLocked bumps the generation, updates user and session synchronously and
// schedules role resolution tagged with the new generation.
func (m *SessionManager) advanceLocked(ev domainauth.Event) {
	prevID := ""
	if m.state.User != nil {
		prevID = m.state.User.ID
	}

	m.state.Generation++
	m.state.Recovering = ev.Type == domainauth.EventPasswordRecovery

	if ev.Session == nil || ev.Type == domainauth.EventSignedOut {
		m.state.User = nil
		m.state.Session = nil
		m.state.Role = domainauth.RoleNone
		m.state.RolePending = false
		m.logger.Debug("session cleared", "event", ev.Type, "generation", m.state.Generation)
		return
	}

	next := domainauth.State{Session: ev.Session}.Clone()
	m.state.Session = next.Session
	user := next.Session.User
	m.state.User = &user
	if user.ID != prevID {
		m.state.Role = domainauth.RoleNone
	}
	m.state.RolePending = true

	m.logger.Debug("session updated",
		"event", ev.Type,
		"user_id", user.ID,
		"generation", m.state.Generation,
	)
	m.scheduleRole(m.state.Generation, user.ID)
}

func (m *SessionManager) scheduleRole(gen uint64, userID string) {
	m.tasks.Add(1)
	go func() {
		defer m.tasks.Done()

		role := domainauth.RoleNone
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("role resolution panicked; treating as no role", "user_id", userID, "panic", r)
				m.applyRole(gen, userID, domainauth.RoleNone)
			}
		}()

		ctx, cancel := context.WithTimeout(m.baseCtx, m.roleTimeout)
		resolved, err := m.roles.Resolve(ctx, userID)
		cancel()
		if err != nil {
			// Indistinguishable from "no role" for gating; an outage can demote an admin.
			m.logger.Warn("role resolution failed; gating with no role",
				"user_id", userID,
				"generation", gen,
				"error", err,
			)
		} else {
			role = resolved
		}
		m.applyRole(gen, userID, role)
	}()
}

// applyRole stores a role result unless a newer event superseded it.
func (m *SessionManager) applyRole(gen uint64, userID string, role domainauth.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Generation != gen || m.state.User == nil || m.state.User.ID != userID {
		m.logger.Debug("dropping stale role result",
			"user_id", userID,
			"task_generation", gen,
			"current_generation", m.state.Generation,
		)
		return
	}
	m.state.Role = role
	m.state.RolePending = false
	m.roleGen = gen
	m.settleLocked()
}

// settleLocked ends the loading phase once the restore check has resolved and no known
// user's role fetch is outstanding, then notifies watchers.
func (m *SessionManager) settleLocked() {
	if m.state.IsLoading && m.restored && (m.state.User == nil || m.roleGen == m.state.Generation) {
		m.state.IsLoading = false
		close(m.ready)
		m.logger.Info("session ready",
			"authenticated", m.state.User != nil,
			"role", string(m.state.Role),
		)
	}
	for ch := range m.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (m *SessionManager) triggerWelcome(user domainauth.User) {
	if m.welcome == nil {
		return
	}
	req := welcomenotifier.Request{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: m.names.Resolve(user),
	}

	m.tasks.Add(1)
	go func() {
		defer m.tasks.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("welcome notification panicked", "user_id", req.UserID, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(m.baseCtx, m.welcomeTimeout)
		defer cancel()
		outcome, err := m.welcome.NotifyIfNeeded(ctx, req)
		if err != nil {
			m.logger.Warn("welcome notification not completed",
				"user_id", req.UserID,
				"outcome", outcome.String(),
				"error", err,
			)
			return
		}
		m.logger.Debug("welcome notification handled", "user_id", req.UserID, "outcome", outcome.String())
	}()
}

// Snapshot returns a copy of the current state.
func (m *SessionManager) Snapshot() domainauth.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Ready is closed once the loading phase ends.
func (m *SessionManager) Ready() <-chan struct{} {
	return m.ready
}

// WaitReady blocks until the loading phase ends or ctx is done.
func (m *SessionManager) WaitReady(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for session ready: %w", ctx.Err())
	}
}

// WaitFor blocks until cond holds for the current state or ctx is done, and returns
// the state that satisfied it.
func (m *SessionManager) WaitFor(ctx context.Context, cond func(domainauth.State) bool) (domainauth.State, error) {
	unsub, changes := m.Subscribe()
	defer unsub()

	for {
		if st := m.Snapshot(); cond(st) {
			return st, nil
		}
		select {
		case _, ok := <-changes:
			if !ok {
				return m.Snapshot(), ErrSessionManagerStopped
			}
		case <-ctx.Done():
			return m.Snapshot(), fmt.Errorf("wait for session state: %w", ctx.Err())
		}
	}
}

// Subscribe returns a coalescing change feed: a receive means the state changed at
// least once since the previous receive. The returned func unsubscribes.
func (m *SessionManager) Subscribe() (func(), <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan struct{}, 1)
	if m.stopped {
		close(ch)
		return func() {}, ch
	}
	m.watchers[ch] = struct{}{}

	unsub := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.watchers[ch]; !ok {
			return
		}
		delete(m.watchers, ch)
		close(ch)
	}
	return unsub, ch
}

// Stop unsubscribes from the provider, waits for the event loop to drain and for
// in-flight tasks to finish, then closes every change feed.
func (m *SessionManager) Stop() {
	m.mu.Lock()
	if !m.started || m.stopped {
		m.stopped = true
		m.closeWatchersLocked()
		m.mu.Unlock()
		return
	}
	m.stopped = true
	unsub := m.unsub
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	<-m.loopDone
	m.cancel()
	m.tasks.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeWatchersLocked()
}

func (m *SessionManager) closeWatchersLocked() {
	for ch := range m.watchers {
		delete(m.watchers, ch)
		close(ch)
	}
}
