package httpx

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	greenhouse "github.com/target/greenhouse"
	domainauth "github.com/target/greenhouse/internal/domain/auth"
	"github.com/target/greenhouse/internal/ports"
)

// SessionView exposes the session manager's state to handlers.
type SessionView interface {
	Snapshot() domainauth.State
	WaitFor(ctx context.Context, cond func(domainauth.State) bool) (domainauth.State, error)
	Ready() <-chan struct{}
}

// AuthActions are the credential commands the UI forwards.
type AuthActions interface {
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, in ports.SignUpInput) error
	SignOut(ctx context.Context) error
}

// EmailVerifier stands in for the confirmation link in development.
type EmailVerifier interface {
	VerifyEmail(ctx context.Context, email string) error
}

// PasswordRecovery is implemented by providers that support the reset flow.
type PasswordRecovery interface {
	BeginRecovery(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, password string) error
}

// DisplayNamer derives the label shown for a signed-in user.
type DisplayNamer interface {
	Resolve(u domainauth.User) string
}

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Session SessionView
	Auth    AuthActions
	// Optional collaborators.
	Verifier     EmailVerifier
	Recovery     PasswordRecovery
	DisplayNames DisplayNamer
	// SignInLimiter throttles credential posts per client. Nil disables throttling.
	SignInLimiter *RateLimiter
	// TemplateFS overrides the embedded templates. Dev mode reads from disk when nil.
	TemplateFS fs.FS
	// SettleTimeout bounds how long a credential post waits for the session to reflect
	// the provider's event before responding. Defaults to 3s.
	SettleTimeout time.Duration
	CookieDomain  string
	IsDev         bool
	Logger        *slog.Logger
}

// Server bundles handler dependencies.
type Server struct {
	session       SessionView
	auth          AuthActions
	verifier      EmailVerifier
	recovery      PasswordRecovery
	names         DisplayNamer
	limiter       *RateLimiter
	renderer      *TemplateRenderer
	settleTimeout time.Duration
	isDev         bool
	logger        *slog.Logger
}

// NewServer validates services and parses templates.
func NewServer(services RouterServices) (*Server, error) {
	if services.Session == nil {
		return nil, errors.New("session view is required")
	}
	if services.Auth == nil {
		return nil, errors.New("auth actions are required")
	}

	logger := services.Logger
	if logger == nil {
		logger = slog.Default().With("component", "http")
	}
	settle := services.SettleTimeout
	if settle <= 0 {
		settle = 3 * time.Second
	}

	templateFS := services.TemplateFS
	if templateFS == nil {
		var err error
		if templateFS, err = defaultTemplateFS(services.IsDev); err != nil {
			return nil, err
		}
	}
	renderer, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: templateFS, Logger: logger})
	if err != nil {
		return nil, err
	}

	return &Server{
		session:       services.Session,
		auth:          services.Auth,
		verifier:      services.Verifier,
		recovery:      services.Recovery,
		names:         services.DisplayNames,
		limiter:       services.SignInLimiter,
		renderer:      renderer,
		settleTimeout: settle,
		isDev:         services.IsDev,
		logger:        logger,
	}, nil
}

// defaultTemplateFS serves templates from disk in dev mode for live editing and from
// the embedded copy otherwise.
func defaultTemplateFS(isDev bool) (fs.FS, error) {
	if isDev {
		if _, err := os.Stat(TemplatePathFromRoot); err == nil {
			return os.DirFS(TemplatePathFromRoot), nil
		}
	}
	return fs.Sub(greenhouse.TemplateFS, TemplatePathFromRoot)
}

// NewRouter creates and configures the HTTP router with its middleware stack.
func NewRouter(services RouterServices) (http.Handler, error) {
	srv, err := NewServer(services)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("HEAD /healthz", healthHandler)
	mux.HandleFunc("GET /readyz", srv.Ready)

	registerAuthRoutes(mux, srv)
	registerPageRoutes(mux, srv)
	mux.HandleFunc("/", srv.NotFound)

	return Chain(mux,
		RequestID(),
		Logging(srv.logger),
		Recover(srv.logger),
		BrowserDetection(),
		CSRFProtection(CSRFConfig{CookieDomain: services.CookieDomain}),
	), nil
}

func registerAuthRoutes(mux *http.ServeMux, s *Server) {
	throttled := func(h http.HandlerFunc) http.Handler {
		if s.limiter == nil {
			return h
		}
		return s.limiter.Middleware(h)
	}

	mux.HandleFunc("GET /auth/sign-in", s.SignInPage)
	mux.Handle("POST /auth/sign-in", throttled(s.SignIn))
	mux.Handle("POST /auth/sign-up", throttled(s.SignUp))
	mux.HandleFunc("POST /auth/sign-out", s.SignOut)
	mux.HandleFunc("GET /auth/state", s.State)
	mux.HandleFunc("GET /auth/verify-email", s.VerifyEmailPage)

	if s.devTools() {
		mux.HandleFunc("POST /auth/dev/verify-email", s.DevVerifyEmail)
	}
	if s.recovery != nil {
		mux.Handle("POST /auth/recover", throttled(s.BeginRecovery))
		mux.HandleFunc("GET /auth/reset-password", s.ResetPasswordPage)
		mux.HandleFunc("POST /auth/update-password", s.UpdatePassword)
	}
}

func (s *Server) devTools() bool { return s.isDev && s.verifier != nil }

func (s *Server) displayName(state domainauth.State) string {
	if state.User == nil {
		return ""
	}
	if s.names != nil {
		if name := s.names.Resolve(*state.User); name != "" {
			return name
		}
	}
	if name := state.User.FullName(); name != "" {
		return name
	}
	return state.User.Email
}
