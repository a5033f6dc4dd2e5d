package bootstrap

import (
	"io"
	"log/slog"
	"time"

	"github.com/target/greenhouse/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testAppConfig is a dev configuration that needs neither Postgres nor Redis.
func testAppConfig() *config.AppConfig {
	return &config.AppConfig{
		IsDev:    true,
		LogLevel: "debug",
		Services: "http,token-refresher",
		Auth: config.AuthConfig{
			Mode:            config.AuthModeMock,
			RoleStore:       config.RoleStoreStatic,
			AdminUsers:      []string{"dev-user"},
			DisplayNameExpr: "metadata.full_name",
			SessionStore:    config.SessionStoreNone,
			DeviceKey:       "default",
			RoleTimeout:     time.Second,
			RefreshInterval: time.Minute,
			DevAuth: config.DevAuthConfig{
				UserID:          "dev-user",
				Email:           "dev@example.com",
				Password:        "greenhouse",
				FullName:        "Dev Gardener",
				Verified:        true,
				TokenSecret:     "0123456789abcdef0123",
				SessionDuration: time.Hour,
			},
		},
		Welcome: config.WelcomeConfig{
			Enabled:   false,
			Transport: config.WelcomeTransportLog,
			FlagStore: config.FlagStoreRedis,
			Timeout:   time.Second,
		},
		HTTP: config.HTTPConfig{
			Addr:            "127.0.0.1:0",
			SignInRate:      1,
			SignInBurst:     5,
			ShutdownTimeout: time.Second,
		},
	}
}
