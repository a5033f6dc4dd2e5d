package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
	apperrors "github.com/target/greenhouse/internal/errors"
	"github.com/target/greenhouse/internal/ports"
	"github.com/target/greenhouse/internal/testutil"
)

const testCSRF = "test-csrf-token"

// fakeSession is a SessionView whose state tests drive directly.
type fakeSession struct {
	mu      sync.Mutex
	state   domainauth.State
	changed chan struct{}
	ready   chan struct{}
}

func newFakeSession(st domainauth.State) *fakeSession {
	f := &fakeSession{state: st, changed: make(chan struct{}), ready: make(chan struct{})}
	if !st.IsLoading {
		close(f.ready)
	}
	return f
}

func (f *fakeSession) Snapshot() domainauth.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Clone()
}

func (f *fakeSession) Set(st domainauth.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = st
	close(f.changed)
	f.changed = make(chan struct{})
}

func (f *fakeSession) WaitFor(ctx context.Context, cond func(domainauth.State) bool) (domainauth.State, error) {
	for {
		f.mu.Lock()
		st, ch := f.state.Clone(), f.changed
		f.mu.Unlock()
		if cond(st) {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

func (f *fakeSession) Ready() <-chan struct{} { return f.ready }

// fakeAuth mimics a provider that emits events synchronously with each command.
type fakeAuth struct {
	session  *fakeSession
	password string
	role     domainauth.Role
	// autoConfirm signs new accounts in already verified.
	autoConfirm bool

	mu         sync.Mutex
	signUps    []ports.SignUpInput
	signOuts   int
	verifiedAt map[string]time.Time
	recovering map[string]bool
	passwords  []string
}

func newFakeAuth(session *fakeSession) *fakeAuth {
	return &fakeAuth{
		session:    session,
		password:   "hunter22",
		role:       domainauth.RoleUser,
		verifiedAt: map[string]time.Time{},
		recovering: map[string]bool{},
	}
}

func (a *fakeAuth) signedIn(email string, verified bool) domainauth.State {
	u := &domainauth.User{ID: "user-" + email, Email: email}
	if verified {
		at := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
		u.EmailVerifiedAt = &at
	}
	return domainauth.State{
		User:       u,
		Session:    &domainauth.Session{AccessToken: "at", User: *u, ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
		Role:       a.role,
		Generation: a.session.Snapshot().Generation + 1,
	}
}

func (a *fakeAuth) SignIn(_ context.Context, email, password string) error {
	if password != a.password {
		return apperrors.Unauthorized("Invalid email or password.")
	}
	a.session.Set(a.signedIn(strings.ToLower(email), true))
	return nil
}

func (a *fakeAuth) SignUp(_ context.Context, in ports.SignUpInput) error {
	a.mu.Lock()
	a.signUps = append(a.signUps, in)
	a.mu.Unlock()
	if in.Email == "taken@example.com" {
		return apperrors.Conflict("An account with this email already exists.")
	}
	st := a.signedIn(strings.ToLower(in.Email), a.autoConfirm)
	st.Role = domainauth.RoleNone
	a.session.Set(st)
	return nil
}

func (a *fakeAuth) SignOut(context.Context) error {
	a.mu.Lock()
	a.signOuts++
	a.mu.Unlock()
	a.session.Set(domainauth.State{Generation: a.session.Snapshot().Generation + 1})
	return nil
}

func (a *fakeAuth) VerifyEmail(_ context.Context, email string) error {
	if email == "ghost@example.com" {
		return apperrors.NotFound("No account with this email.")
	}
	st := a.session.Snapshot()
	if st.User != nil && strings.EqualFold(st.User.Email, email) {
		a.session.Set(a.signedIn(st.User.Email, true))
	}
	return nil
}

func (a *fakeAuth) BeginRecovery(_ context.Context, email string) error {
	if email != "fern@example.com" {
		return nil
	}
	st := a.signedIn(email, true)
	st.Recovering = true
	a.session.Set(st)
	return nil
}

func (a *fakeAuth) UpdatePassword(_ context.Context, password string) error {
	a.mu.Lock()
	a.passwords = append(a.passwords, password)
	a.mu.Unlock()
	st := a.session.Snapshot()
	st.Recovering = false
	st.Generation++
	a.session.Set(st)
	return nil
}

type testEnv struct {
	session *fakeSession
	auth    *fakeAuth
	handler http.Handler
}

type envOption func(*RouterServices)

func withDev() envOption {
	return func(s *RouterServices) { s.IsDev = true }
}

func newTestEnv(t *testing.T, initial domainauth.State, opts ...envOption) *testEnv {
	t.Helper()
	session := newFakeSession(initial)
	auth := newFakeAuth(session)
	services := RouterServices{
		Session:       session,
		Auth:          auth,
		Verifier:      auth,
		Recovery:      auth,
		TemplateFS:    os.DirFS(TemplatePathFromTest),
		SettleTimeout: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&services)
	}
	h, err := NewRouter(services)
	require.NoError(t, err)
	return &testEnv{session: session, auth: auth, handler: h}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return e.do(req)
}

// postForm submits a browser form carrying a valid CSRF token.
func (e *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	form.Set(CSRFCookieName, testCSRF)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: testCSRF})
	return e.do(req)
}

func (e *testEnv) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return e.do(req)
}

func signedOutState() domainauth.State { return testutil.SignedOutState() }

func verifiedState(role domainauth.Role) domainauth.State {
	sess := testutil.NewSession("u1").WithEmail("fern@example.com").WithFullName("Fern Gully").Build()
	st := testutil.StateFor(sess, role)
	st.Generation = 2
	return st
}

func formRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}
