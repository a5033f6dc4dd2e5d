package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/target/greenhouse/config"
	"github.com/target/greenhouse/internal/ports"
)

// ServiceOrchestrationConfig contains everything needed to run the enabled services.
type ServiceOrchestrationConfig struct {
	Config *config.AppConfig
	Auth   *AuthComponents
	Logger *slog.Logger
	// Listener is handed to the HTTP server when set.
	Listener net.Listener
}

// backgroundService describes a startable component. start blocks until ctx is
// cancelled or the component fails.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

func newHTTPBackgroundService(cfg *ServiceOrchestrationConfig, logger *slog.Logger) backgroundService {
	return backgroundService{
		mode: config.ServiceModeHTTP,
		name: "http server",
		start: func(ctx context.Context) error {
			return RunHTTPServer(ctx, &HTTPServerConfig{
				Config:   cfg.Config,
				Auth:     cfg.Auth,
				Logger:   logger,
				Listener: cfg.Listener,
			})
		},
	}
}

func newTokenRefresherBackgroundService(cfg *ServiceOrchestrationConfig, logger *slog.Logger) backgroundService {
	return backgroundService{
		mode: config.ServiceModeTokenRefresher,
		name: "token refresher",
		start: func(ctx context.Context) error {
			refresher, ok := cfg.Auth.Provider.(ports.TokenRefresher)
			if !ok {
				logger.InfoContext(ctx, "identity provider cannot refresh sessions; token refresher idle")
				<-ctx.Done()
				return nil
			}
			return RunTokenRefresher(ctx, TokenRefresherConfig{
				Refresher: refresher,
				Session:   cfg.Auth.Session,
				Interval:  cfg.Config.Auth.RefreshInterval,
				Logger:    logger.With("component", "token_refresher"),
			})
		},
	}
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger) []backgroundService {
	return []backgroundService{
		newHTTPBackgroundService(cfg, logger),
		newTokenRefresherBackgroundService(cfg, logger),
	}
}

// RunServices starts the session manager and every enabled service, and blocks until
// ctx is cancelled or one of them fails. The first failure cancels the others.
func RunServices(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	if cfg.Auth == nil || cfg.Auth.Session == nil {
		return errors.New("service orchestration config missing auth components")
	}
	logger := loggerOrDefault(cfg.Logger)

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	// The restore runs alongside the HTTP server, which answers with the loading
	// placeholder until the session manager is ready.
	g.Go(func() error {
		if startErr := cfg.Auth.Session.Start(gctx); startErr != nil {
			return fmt.Errorf("session manager: %w", startErr)
		}
		logger.InfoContext(gctx, "session manager started")
		return nil
	})

	for _, svc := range buildBackgroundServices(cfg, logger) {
		if !enabledServices[svc.mode] {
			continue
		}
		g.Go(func() error {
			logger.InfoContext(gctx, "background service started", "service", svc.name, "mode", svc.mode)
			if runErr := svc.start(gctx); runErr != nil {
				return fmt.Errorf("%s failed: %w", svc.name, runErr)
			}
			logger.InfoContext(ctx, svc.name+" stopped")
			return nil
		})
	}

	return g.Wait()
}

// RunServicesWithShutdown runs the enabled services until SIGINT or SIGTERM.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var logger *slog.Logger
	if cfg != nil {
		logger = cfg.Logger
	}
	logger = loggerOrDefault(logger)

	if err := RunServices(sigCtx, cfg); err != nil {
		logger.Error("service error", "error", err)
		return err
	}
	logger.Info("services stopped")
	return nil
}
