package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/target/greenhouse/config"
	httpx "github.com/target/greenhouse/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config *config.AppConfig
	Auth   *AuthComponents
	Logger *slog.Logger
	// Listener overrides Config.HTTP.Addr, mainly for tests.
	Listener net.Listener
}

// BuildHTTPHandler assembles router services from the auth graph. Optional provider
// capabilities (email verification, password recovery) are detected by interface.
func BuildHTTPHandler(cfg *HTTPServerConfig) (http.Handler, *httpx.RateLimiter, error) {
	if cfg == nil || cfg.Auth == nil || cfg.Auth.Session == nil {
		return nil, nil, errors.New("http server requires a session manager")
	}
	logger := loggerOrDefault(cfg.Logger)
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	limiter := httpx.NewRateLimiter(httpx.RateLimiterConfig{
		Rate:  appCfg.HTTP.SignInRate,
		Burst: appCfg.HTTP.SignInBurst,
	})

	services := httpx.RouterServices{
		Session:       cfg.Auth.Session,
		Auth:          cfg.Auth.Session,
		SignInLimiter: limiter,
		IsDev:         appCfg.IsDev,
		Logger:        logger,
	}
	if cfg.Auth.Names != nil {
		services.DisplayNames = cfg.Auth.Names
	}
	if v, ok := cfg.Auth.Provider.(httpx.EmailVerifier); ok {
		services.Verifier = v
	}
	if r, ok := cfg.Auth.Provider.(httpx.PasswordRecovery); ok {
		services.Recovery = r
	}

	handler, err := httpx.NewRouter(services)
	if err != nil {
		return nil, nil, fmt.Errorf("build router: %w", err)
	}
	return handler, limiter, nil
}

// RunHTTPServer serves until ctx is cancelled, then shuts the server down gracefully.
// A listener failure is returned immediately.
func RunHTTPServer(ctx context.Context, cfg *HTTPServerConfig) error {
	handler, limiter, err := BuildHTTPHandler(cfg)
	if err != nil {
		return err
	}
	logger := loggerOrDefault(cfg.Logger)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go limiter.RunSweeper(sweepCtx)

	var addr string
	shutdownTimeout := 15 * time.Second
	if cfg.Config != nil {
		addr = cfg.Config.HTTP.Addr
		if cfg.Config.HTTP.ShutdownTimeout > 0 {
			shutdownTimeout = cfg.Config.HTTP.ShutdownTimeout
		}
	}
	server := newServer(handler, addr)

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		var serveErr error
		if cfg.Listener != nil {
			logger.InfoContext(ctx, "starting HTTP server", "addr", cfg.Listener.Addr().String())
			serveErr = server.Serve(cfg.Listener)
		} else {
			logger.InfoContext(ctx, "starting HTTP server", "addr", server.Addr)
			warnRemoteBind(ctx, logger, server.Addr)
			serveErr = server.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case serveErr := <-errCh:
		if serveErr != nil {
			return fmt.Errorf("http server: %w", serveErr)
		}
		return nil
	case <-ctx.Done():
	}

	return ShutdownHTTPServer(ShutdownConfig{
		Server:  server,
		Timeout: shutdownTimeout,
		Logger:  logger,
	})
}

func newServer(handler http.Handler, addr string) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server. The caller's context is
// usually already cancelled here, so the timeout runs on a fresh context.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	logger := loggerOrDefault(cfg.Logger)
	logger.Info("shutting down HTTP server")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	logger.Info("HTTP server stopped")
	return nil
}

// warnRemoteBind flags a listener that lets other hosts act as the signed-in user.
func warnRemoteBind(ctx context.Context, logger *slog.Logger, addr string) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil || config.IsLoopbackHost(host) {
		return
	}
	logger.WarnContext(ctx, "HTTP server reachable beyond loopback; every client shares the signed-in session",
		"addr", addr)
}
