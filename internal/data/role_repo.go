package data

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/target/greenhouse/internal/data/pgxutil"
	domainauth "github.com/target/greenhouse/internal/domain/auth"
	apperrors "github.com/target/greenhouse/internal/errors"
	"github.com/target/greenhouse/internal/ports"
)

// RoleRepo provides database operations for the user_roles side table.
type RoleRepo struct {
	DB *sql.DB
}

// NewRoleRepo creates a new role repository.
func NewRoleRepo(db *sql.DB) *RoleRepo {
	return &RoleRepo{DB: db}
}

const roleGrantColumns = `user_id, role, granted_by, created_at, updated_at`

// RolesForUser returns every role row for userID. Zero rows is not an error.
func (r *RoleRepo) RolesForUser(ctx context.Context, userID string) ([]domainauth.Role, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}

	var roles []domainauth.Role
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, userID)
		if err != nil {
			return err
		}
		raw, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		for _, v := range raw {
			roles = append(roles, domainauth.ParseRole(v))
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return roles, nil
}

// Grant sets the role for userID, replacing any existing row.
func (r *RoleRepo) Grant(ctx context.Context, userID string, role domainauth.Role, grantedBy string) (*domainauth.RoleGrant, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if !role.IsKnown() {
		return nil, apperrors.ValidationField("role", "role must be admin or user")
	}

	var grant domainauth.RoleGrant
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		query := `
			INSERT INTO user_roles (user_id, role, granted_by)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO UPDATE
			SET role = EXCLUDED.role, granted_by = EXCLUDED.granted_by, updated_at = now()
			RETURNING ` + roleGrantColumns

		rows, err := conn.Query(ctx, query, userID, string(role), strings.TrimSpace(grantedBy))
		if err != nil {
			return err
		}
		grant, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.RoleGrant])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &grant, nil
}

// Revoke deletes the role row for userID. It reports whether a row existed.
func (r *RoleRepo) Revoke(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, ErrUserIDRequired
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return false, apperrors.MapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.MapDBError(err)
	}
	return n > 0, nil
}

// ListRolesOptions filters List. A zero Limit means 100.
type ListRolesOptions struct {
	Role   domainauth.Role
	Limit  int
	Offset int
}

// List returns role rows ordered by user id.
func (r *RoleRepo) List(ctx context.Context, opts ListRolesOptions) ([]domainauth.RoleGrant, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := max(opts.Offset, 0)

	var grants []domainauth.RoleGrant
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		query := `SELECT ` + roleGrantColumns + ` FROM user_roles
			WHERE ($1 = '' OR role = $1)
			ORDER BY user_id
			LIMIT $2 OFFSET $3`
		rows, err := conn.Query(ctx, query, string(opts.Role), limit, offset)
		if err != nil {
			return err
		}
		grants, err = pgx.CollectRows(rows, pgx.RowToStructByName[domainauth.RoleGrant])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return grants, nil
}

// Get returns the role row for userID or a not-found error.
func (r *RoleRepo) Get(ctx context.Context, userID string) (*domainauth.RoleGrant, error) {
	var grant domainauth.RoleGrant
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+roleGrantColumns+` FROM user_roles WHERE user_id = $1`, userID)
		if err != nil {
			return err
		}
		grant, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.RoleGrant])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundf("no role granted to %s", userID)
		}
		return nil, apperrors.MapDBError(err)
	}
	return &grant, nil
}

var _ ports.RoleStore = (*RoleRepo)(nil)
