package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/greenhouse/config"
	"github.com/target/greenhouse/internal/adapters/authroles"
	"github.com/target/greenhouse/internal/adapters/devauth"
	"github.com/target/greenhouse/internal/adapters/oidc"
	redisadapter "github.com/target/greenhouse/internal/adapters/redis"
	"github.com/target/greenhouse/internal/data"
	"github.com/target/greenhouse/internal/notify"
	"github.com/target/greenhouse/internal/notify/webhook"
	"github.com/target/greenhouse/internal/ports"
	"github.com/target/greenhouse/internal/service"
	"github.com/target/greenhouse/internal/service/welcomenotifier"
)

// AuthDeps contains the configuration and shared clients the auth graph is built from.
// DB and RedisClient may be nil when no configured backend needs them.
type AuthDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// AuthComponents is the assembled auth graph.
type AuthComponents struct {
	Provider ports.IdentityProvider
	Session  *service.SessionManager
	Names    *service.DisplayNameResolver

	closeProvider func()
}

// Close stops the session manager before releasing the provider.
func (a *AuthComponents) Close() {
	if a == nil {
		return
	}
	if a.Session != nil {
		a.Session.Stop()
	}
	if a.closeProvider != nil {
		a.closeProvider()
	}
}

// ClosableProvider is an identity provider that owns background resources.
type ClosableProvider interface {
	ports.IdentityProvider
	Close()
}

// BuildAuth creates the identity provider, role resolver, welcome notifier and session
// manager described by deps.Config. The session manager is returned unstarted.
func BuildAuth(ctx context.Context, deps AuthDeps) (*AuthComponents, error) {
	if deps.Config == nil {
		return nil, errors.New("auth config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	names, err := service.NewDisplayNameResolver(deps.Config.Auth.DisplayNameExpr)
	if err != nil {
		return nil, fmt.Errorf("display name resolver: %w", err)
	}

	provider, err := BuildIdentityProvider(ctx, deps)
	if err != nil {
		return nil, err
	}

	components, err := assembleSession(deps, provider, names, logger)
	if err != nil {
		provider.Close()
		return nil, err
	}
	return components, nil
}

func assembleSession(
	deps AuthDeps,
	provider ClosableProvider,
	names *service.DisplayNameResolver,
	logger *slog.Logger,
) (*AuthComponents, error) {
	store, err := BuildRoleStore(deps)
	if err != nil {
		return nil, err
	}
	roles, err := service.NewRoleResolver(service.RoleResolverOptions{
		Store:  store,
		Logger: logger.With("component", "role_resolver"),
	})
	if err != nil {
		return nil, fmt.Errorf("role resolver: %w", err)
	}

	welcome, err := BuildWelcomeNotifier(deps)
	if err != nil {
		return nil, err
	}

	manager, err := service.NewSessionManager(service.SessionManagerOptions{
		Provider:    provider,
		Roles:       roles,
		Welcome:     welcome,
		Names:       names,
		Logger:      logger.With("component", "session_manager"),
		RoleTimeout: deps.Config.Auth.RoleTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}

	return &AuthComponents{
		Provider:      provider,
		Session:       manager,
		Names:         names,
		closeProvider: provider.Close,
	}, nil
}

// BuildIdentityProvider creates the provider selected by AUTH_MODE.
//
//nolint:ireturn // the concrete adapter depends on configuration.
func BuildIdentityProvider(ctx context.Context, deps AuthDeps) (ClosableProvider, error) {
	auth := deps.Config.Auth
	persistence := buildSessionPersistence(deps)

	switch auth.Mode {
	case config.AuthModeMock:
		prov, err := devauth.NewProvider(devauth.Config{
			Seed:            devSeed(auth.DevAuth),
			TokenSecret:     auth.DevAuth.TokenSecret,
			SessionDuration: auth.DevAuth.SessionDuration,
			AutoConfirm:     auth.DevAuth.AutoConfirm,
			Persistence:     persistence,
			DeviceKey:       auth.DeviceKey,
			Logger:          loggerOrDefault(deps.Logger).With("component", "devauth"),
		})
		if err != nil {
			return nil, fmt.Errorf("dev auth provider: %w", err)
		}
		return prov, nil

	case config.AuthModeOAuth:
		oauth := auth.OAuth
		if oauth.DiscoveryURL == "" || oauth.ClientID == "" {
			return nil, errors.New("oauth mode requires OAUTH_DISCOVERY_URL and OAUTH_CLIENT_ID")
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prov, err := oidc.NewProvider(oidc.ProviderConfig{
			ClientID:     oauth.ClientID,
			ClientSecret: oauth.ClientSecret,
			Scope:        oauth.Scope,
			DiscoveryURL: oauth.DiscoveryURL,
			Persistence:  persistence,
			DeviceKey:    auth.DeviceKey,
			Logger:       loggerOrDefault(deps.Logger).With("component", "oidc_provider"),
		})
		if err != nil {
			return nil, fmt.Errorf("oidc provider: %w", err)
		}
		return prov, nil

	default:
		return nil, fmt.Errorf("unknown auth mode %q", auth.Mode)
	}
}

func devSeed(cfg config.DevAuthConfig) []devauth.SeedAccount {
	if cfg.Email == "" || cfg.Password == "" {
		return nil
	}
	return []devauth.SeedAccount{{
		UserID:   cfg.UserID,
		Email:    cfg.Email,
		Password: cfg.Password,
		FullName: cfg.FullName,
		Verified: cfg.Verified,
	}}
}

// buildSessionPersistence returns nil unless sessions should survive restarts.
//
//nolint:ireturn // nil means no persistence.
func buildSessionPersistence(deps AuthDeps) ports.SessionPersistence {
	if deps.Config.Auth.SessionStore != config.SessionStoreRedis || deps.RedisClient == nil {
		return nil
	}
	return redisadapter.NewSessionStore(deps.RedisClient, redisadapter.SessionStoreOptions{})
}

// BuildRoleStore creates the role side table selected by AUTH_ROLE_STORE.
//
//nolint:ireturn // the concrete store depends on configuration.
func BuildRoleStore(deps AuthDeps) (ports.RoleStore, error) {
	auth := deps.Config.Auth
	switch auth.RoleStore {
	case config.RoleStoreStatic:
		return authroles.NewStaticRoleStore(auth.AdminUsers, auth.Users), nil
	case config.RoleStorePostgres, "":
		if deps.DB == nil {
			return nil, errors.New("postgres role store requires a database connection")
		}
		return data.NewRoleRepo(deps.DB), nil
	default:
		return nil, fmt.Errorf("unknown role store %q", auth.RoleStore)
	}
}

// BuildWelcomeNotifier returns nil when welcome notifications are disabled.
//
//nolint:ireturn // nil disables notifications in the session manager.
func BuildWelcomeNotifier(deps AuthDeps) (service.WelcomeNotifier, error) {
	cfg := deps.Config.Welcome
	if !cfg.Enabled {
		return nil, nil
	}
	logger := loggerOrDefault(deps.Logger)

	transport, err := buildWelcomeTransport(cfg, logger)
	if err != nil {
		return nil, err
	}
	flags, err := buildWelcomeFlags(cfg, deps)
	if err != nil {
		return nil, err
	}

	svc, err := welcomenotifier.NewService(welcomenotifier.Options{
		Logger:      logger.With("component", "welcome_notifier"),
		Transport:   transport,
		Flags:       flags,
		SendTimeout: cfg.Timeout * time.Duration(cfg.RetryLimit+1),
	})
	if err != nil {
		return nil, fmt.Errorf("welcome notifier: %w", err)
	}
	return svc, nil
}

//nolint:ireturn // transport selection is configuration driven.
func buildWelcomeTransport(cfg config.WelcomeConfig, logger *slog.Logger) (ports.WelcomeTransport, error) {
	switch cfg.Transport {
	case config.WelcomeTransportWebhook:
		client, err := webhook.NewClient(webhook.Config{
			URL:        cfg.WebhookURL,
			Username:   cfg.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
			Logger:     logger.With("component", "welcome_webhook"),
		})
		if err != nil {
			return nil, fmt.Errorf("welcome webhook: %w", err)
		}
		return client, nil
	case config.WelcomeTransportLog, "":
		return notify.LogSink{Logger: logger.With("component", "welcome_log_sink")}, nil
	default:
		return nil, fmt.Errorf("unknown welcome transport %q", cfg.Transport)
	}
}

//nolint:ireturn // flag store selection is configuration driven.
func buildWelcomeFlags(cfg config.WelcomeConfig, deps AuthDeps) (ports.WelcomeFlagStore, error) {
	switch cfg.FlagStore {
	case config.FlagStoreRedis:
		if deps.RedisClient == nil {
			return nil, errors.New("redis welcome flag store requires a redis connection")
		}
		return redisadapter.NewWelcomeFlagStore(deps.RedisClient), nil
	case config.FlagStorePostgres, "":
		if deps.DB == nil {
			return nil, errors.New("postgres welcome flag store requires a database connection")
		}
		return data.NewWelcomeFlagRepo(deps.DB), nil
	default:
		return nil, fmt.Errorf("unknown welcome flag store %q", cfg.FlagStore)
	}
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
