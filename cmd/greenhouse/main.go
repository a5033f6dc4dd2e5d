package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/target/greenhouse/config"
	"github.com/target/greenhouse/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger(slog.LevelInfo)
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logger = bootstrap.InitLogger(cfg.SlogLevel())

	// Log startup info
	logStartupInfo(ctx, logger, &cfg)

	if err = bootstrap.ValidateServiceConfig(&cfg); err != nil {
		return err
	}

	infra, err := initInfrastructure(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer infra.close(ctx, logger)

	if infra.db != nil {
		if cfg.Postgres.RunMigrationsOnStart {
			if err = bootstrap.RunMigrations(ctx, infra.db, logger); err != nil {
				return err
			}
		} else {
			logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		}
	}

	auth, err := bootstrap.BuildAuth(ctx, bootstrap.AuthDeps{
		Config:      &cfg,
		DB:          infra.db,
		RedisClient: infra.redis,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build auth: %w", err)
	}
	defer auth.Close()

	return bootstrap.RunServicesWithShutdown(ctx, &bootstrap.ServiceOrchestrationConfig{
		Config: &cfg,
		Auth:   auth,
		Logger: logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting greenhouse service",
		"auth_mode", cfg.Auth.Mode,
		"role_store", cfg.Auth.RoleStore,
		"welcome_enabled", cfg.Welcome.Enabled,
		"welcome_transport", cfg.Welcome.Transport,
		"needs_postgres", cfg.NeedsPostgres(),
		"needs_redis", cfg.NeedsRedis(),
		"enabled_services", bootstrap.GetEnabledServices(cfg))
}

type infrastructure struct {
	db    *sql.DB
	redis redis.UniversalClient
}

func (i infrastructure) close(ctx context.Context, logger *slog.Logger) {
	if i.redis != nil {
		if cerr := i.redis.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", cerr)
		}
	}
	if i.db != nil {
		if cerr := i.db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}
}

// initInfrastructure connects only the backends the configuration selects.
func initInfrastructure(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (infrastructure, error) {
	var infra infrastructure
	dbCfg := bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	}

	if cfg.NeedsPostgres() {
		db, err := bootstrap.ConnectDB(ctx, dbCfg)
		if err != nil {
			return infra, fmt.Errorf("connect db: %w", err)
		}
		infra.db = db
	}

	if cfg.NeedsRedis() {
		client, err := bootstrap.ConnectRedis(ctx, dbCfg)
		if err != nil {
			if infra.db != nil {
				if cerr := infra.db.Close(); cerr != nil {
					logger.ErrorContext(ctx, "close database after redis connect failure", "error", cerr)
					return infrastructure{}, fmt.Errorf("connect redis: %w", errors.Join(err, fmt.Errorf("close database: %w", cerr)))
				}
			}
			return infrastructure{}, fmt.Errorf("connect redis: %w", err)
		}
		infra.redis = client
	}

	return infra, nil
}
