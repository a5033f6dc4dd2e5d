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
	"text/tabwriter"
	"time"

	"github.com/target/greenhouse/internal/bootstrap"
	"github.com/target/greenhouse/internal/data"
	domainauth "github.com/target/greenhouse/internal/domain/auth"
)

// roleAdmin is the subset of data.RoleRepo the role commands use.
type roleAdmin interface {
	Grant(ctx context.Context, userID string, role domainauth.Role, grantedBy string) (*domainauth.RoleGrant, error)
	Revoke(ctx context.Context, userID string) (bool, error)
	List(ctx context.Context, opts data.ListRolesOptions) ([]domainauth.RoleGrant, error)
}

type migrateOptions struct {
	Timeout time.Duration
}

type grantOptions struct {
	UserID    string
	Role      domainauth.Role
	GrantedBy string
}

type revokeOptions struct {
	UserID string
	Yes    bool
}

type listRolesOptions struct {
	Role   domainauth.Role
	Limit  int
	Offset int
	JSON   bool
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.InfoContext(ctx, "running database migrations")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return migrateErr
		}
		cmdCtx.Logger.InfoContext(ctx, "migrations completed successfully")
		return nil
	})
}

func runGrantRole(cmdCtx *commandContext, args []string) error {
	opts, err := parseGrantFlags(args)
	if err != nil {
		return err
	}
	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		return grantRole(ctx, cmdCtx.Out, data.NewRoleRepo(db), opts)
	})
}

func runRevokeRole(cmdCtx *commandContext, args []string) error {
	opts, err := parseRevokeFlags(args)
	if err != nil {
		return err
	}
	if err := confirmAction(cmdCtx, opts.Yes, fmt.Sprintf("About to revoke the role of %q.", opts.UserID)); err != nil {
		return err
	}
	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		return revokeRole(ctx, cmdCtx.Out, data.NewRoleRepo(db), opts)
	})
}

func runListRoles(cmdCtx *commandContext, args []string) error {
	opts, err := parseListRolesFlags(args)
	if err != nil {
		return err
	}
	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		return listRoles(ctx, cmdCtx.Out, data.NewRoleRepo(db), opts)
	})
}

func grantRole(ctx context.Context, w io.Writer, repo roleAdmin, opts grantOptions) error {
	grant, err := repo.Grant(ctx, opts.UserID, opts.Role, opts.GrantedBy)
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return writef(w, "granted %s to %s\n", grant.Role, grant.UserID)
}

func revokeRole(ctx context.Context, w io.Writer, repo roleAdmin, opts revokeOptions) error {
	removed, err := repo.Revoke(ctx, opts.UserID)
	if err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	if !removed {
		return writef(w, "%s had no role\n", opts.UserID)
	}
	return writef(w, "revoked role of %s\n", opts.UserID)
}

func listRoles(ctx context.Context, w io.Writer, repo roleAdmin, opts listRolesOptions) error {
	grants, err := repo.List(ctx, data.ListRolesOptions{Role: opts.Role, Limit: opts.Limit, Offset: opts.Offset})
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if grants == nil {
			grants = []domainauth.RoleGrant{}
		}
		return enc.Encode(grants)
	}
	return renderRoleTable(w, grants)
}

func renderRoleTable(w io.Writer, grants []domainauth.RoleGrant) error {
	if len(grants) == 0 {
		return writef(w, "no roles granted\n")
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "USER ID\tROLE\tGRANTED BY\tUPDATED\n"); err != nil {
		return err
	}
	for _, g := range grants {
		grantedBy := g.GrantedBy
		if grantedBy == "" {
			grantedBy = "-"
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\n", g.UserID, g.Role, grantedBy, g.UpdatedAt.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations to complete")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func parseGrantFlags(args []string) (grantOptions, error) {
	fs := flag.NewFlagSet("grant-role", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts grantOptions
	var role string
	fs.StringVar(&opts.UserID, "user", "", "User id to grant the role to (required)")
	fs.StringVar(&role, "role", string(domainauth.RoleUser), "Role to grant: admin or user")
	fs.StringVar(&opts.GrantedBy, "granted-by", defaultGrantedBy(), "Operator recorded with the grant")

	if err := fs.Parse(args); err != nil {
		return grantOptions{}, err
	}
	opts.UserID = strings.TrimSpace(opts.UserID)
	if opts.UserID == "" {
		return grantOptions{}, errors.New("--user is required")
	}
	opts.Role = domainauth.ParseRole(role)
	if !opts.Role.IsKnown() {
		return grantOptions{}, fmt.Errorf("--role must be admin or user, got %q", role)
	}
	return opts, nil
}

func parseRevokeFlags(args []string) (revokeOptions, error) {
	fs := flag.NewFlagSet("revoke-role", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts revokeOptions
	fs.StringVar(&opts.UserID, "user", "", "User id whose role is removed (required)")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return revokeOptions{}, err
	}
	opts.UserID = strings.TrimSpace(opts.UserID)
	if opts.UserID == "" {
		return revokeOptions{}, errors.New("--user is required")
	}
	return opts, nil
}

func parseListRolesFlags(args []string) (listRolesOptions, error) {
	fs := flag.NewFlagSet("list-roles", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listRolesOptions
	var role string
	fs.StringVar(&role, "role", "", "Only show this role (admin or user)")
	fs.IntVar(&opts.Limit, "limit", 100, "Maximum rows to return")
	fs.IntVar(&opts.Offset, "offset", 0, "Rows to skip")
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON instead of a table")

	if err := fs.Parse(args); err != nil {
		return listRolesOptions{}, err
	}
	if role != "" {
		opts.Role = domainauth.ParseRole(role)
		if !opts.Role.IsKnown() {
			return listRolesOptions{}, fmt.Errorf("--role must be admin or user, got %q", role)
		}
	}
	if opts.Limit <= 0 {
		return listRolesOptions{}, errors.New("--limit must be greater than zero")
	}
	if opts.Offset < 0 {
		return listRolesOptions{}, errors.New("--offset must not be negative")
	}
	return opts, nil
}

func defaultGrantedBy() string {
	if u := strings.TrimSpace(os.Getenv("USER")); u != "" {
		return u
	}
	return "greenhouse-admin"
}
