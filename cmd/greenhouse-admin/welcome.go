package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/greenhouse/config"
	redisadapter "github.com/target/greenhouse/internal/adapters/redis"
	"github.com/target/greenhouse/internal/data"
	domainauth "github.com/target/greenhouse/internal/domain/auth"
)

// welcomeRecords reads and clears delivered-welcome flags.
type welcomeRecords interface {
	Status(ctx context.Context, userID string) (domainauth.WelcomeRecord, error)
	Reset(ctx context.Context, userID string) (bool, error)
}

// redisWelcomeRecords adapts the Redis flag store to welcomeRecords.
type redisWelcomeRecords struct {
	store *redisadapter.WelcomeFlagStore
}

func (r redisWelcomeRecords) Status(ctx context.Context, userID string) (domainauth.WelcomeRecord, error) {
	at, err := r.store.DeliveredAt(ctx, userID)
	if err != nil {
		return domainauth.WelcomeRecord{UserID: userID}, err
	}
	return domainauth.WelcomeRecord{UserID: userID, Delivered: at != nil, DeliveredAt: at}, nil
}

func (r redisWelcomeRecords) Reset(ctx context.Context, userID string) (bool, error) {
	return r.store.Clear(ctx, userID)
}

type welcomeStatusOptions struct {
	UserID string
	Store  config.FlagStoreKind
	Reset  bool
	Yes    bool
	JSON   bool
}

func runWelcomeStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseWelcomeStatusFlags(args, cmdCtx.Config.Welcome.FlagStore)
	if err != nil {
		return err
	}
	if opts.Reset {
		prompt := fmt.Sprintf("About to reset the welcome flag of %q; the next sign-in will send it again.", opts.UserID)
		if err := confirmAction(cmdCtx, opts.Yes, prompt); err != nil {
			return err
		}
	}

	switch opts.Store {
	case config.FlagStoreRedis:
		return withRedis(cmdCtx, defaultCommandTimeout, func(ctx context.Context, client redis.UniversalClient) error {
			records := redisWelcomeRecords{store: redisadapter.NewWelcomeFlagStore(client)}
			return welcomeStatus(ctx, cmdCtx.Out, records, opts)
		})
	default:
		return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
			return welcomeStatus(ctx, cmdCtx.Out, data.NewWelcomeFlagRepo(db), opts)
		})
	}
}

func welcomeStatus(ctx context.Context, w io.Writer, records welcomeRecords, opts welcomeStatusOptions) error {
	if opts.Reset {
		cleared, err := records.Reset(ctx, opts.UserID)
		if err != nil {
			return fmt.Errorf("reset welcome flag: %w", err)
		}
		if !cleared {
			return writef(w, "%s has no welcome flag\n", opts.UserID)
		}
		return writef(w, "welcome flag cleared for %s\n", opts.UserID)
	}

	rec, err := records.Status(ctx, opts.UserID)
	if err != nil {
		return fmt.Errorf("welcome status: %w", err)
	}
	if opts.JSON {
		return json.NewEncoder(w).Encode(rec)
	}
	if !rec.Delivered || rec.DeliveredAt == nil {
		return writef(w, "%s: welcome not delivered\n", rec.UserID)
	}
	return writef(w, "%s: welcome delivered at %s\n", rec.UserID, rec.DeliveredAt.UTC().Format(time.RFC3339))
}

func parseWelcomeStatusFlags(args []string, defaultStore config.FlagStoreKind) (welcomeStatusOptions, error) {
	fs := flag.NewFlagSet("welcome-status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	if defaultStore == "" {
		defaultStore = config.FlagStorePostgres
	}

	var opts welcomeStatusOptions
	var store string
	fs.StringVar(&opts.UserID, "user", "", "User id to inspect (required)")
	fs.StringVar(&store, "store", string(defaultStore), "Flag store: postgres or redis")
	fs.BoolVar(&opts.Reset, "reset", false, "Clear the flag so the welcome is sent again")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt for --reset")
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON instead of text")

	if err := fs.Parse(args); err != nil {
		return welcomeStatusOptions{}, err
	}
	opts.UserID = strings.TrimSpace(opts.UserID)
	if opts.UserID == "" {
		return welcomeStatusOptions{}, errors.New("--user is required")
	}
	if err := opts.Store.UnmarshalText([]byte(store)); err != nil {
		return welcomeStatusOptions{}, fmt.Errorf("--store: %w", err)
	}
	return opts, nil
}
