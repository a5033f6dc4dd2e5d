package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
	apperrors "github.com/target/greenhouse/internal/errors"
	"github.com/target/greenhouse/internal/testutil"
)

func TestRoleRepo_GrantAndResolve(t *testing.T) {
	testutil.WithEphemeralDB(t, func(db *sql.DB) {
		repo := NewRoleRepo(db)
		ctx := context.Background()

		roles, err := repo.RolesForUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Empty(t, roles, "no row is a valid empty result")

		grant, err := repo.Grant(ctx, "user-1", domainauth.RoleUser, "ops@example.com")
		require.NoError(t, err)
		assert.Equal(t, "user-1", grant.UserID)
		assert.Equal(t, domainauth.RoleUser, grant.Role)
		assert.Equal(t, "ops@example.com", grant.GrantedBy)

		roles, err = repo.RolesForUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, []domainauth.Role{domainauth.RoleUser}, roles)
	})
}

func TestRoleRepo_GrantReplacesExistingRole(t *testing.T) {
	testutil.WithEphemeralDB(t, func(db *sql.DB) {
		repo := NewRoleRepo(db)
		ctx := context.Background()

		_, err := repo.Grant(ctx, "user-1", domainauth.RoleUser, "")
		require.NoError(t, err)
		promoted, err := repo.Grant(ctx, "user-1", domainauth.RoleAdmin, "root")
		require.NoError(t, err)
		assert.Equal(t, domainauth.RoleAdmin, promoted.Role)
		assert.False(t, promoted.UpdatedAt.Before(promoted.CreatedAt))

		roles, err := repo.RolesForUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, []domainauth.Role{domainauth.RoleAdmin}, roles)
	})
}

func TestRoleRepo_GrantValidation(t *testing.T) {
	repo := NewRoleRepo(nil)
	ctx := context.Background()

	_, err := repo.Grant(ctx, " ", domainauth.RoleUser, "")
	require.ErrorIs(t, err, ErrUserIDRequired)

	_, err = repo.Grant(ctx, "user-1", domainauth.Role("owner"), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "role", apperrors.GetField(err))

	_, err = repo.RolesForUser(ctx, "")
	require.ErrorIs(t, err, ErrUserIDRequired)
}

func TestRoleRepo_RevokeListGet(t *testing.T) {
	testutil.WithEphemeralDB(t, func(db *sql.DB) {
		repo := NewRoleRepo(db)
		ctx := context.Background()

		for _, g := range []struct {
			id   string
			role domainauth.Role
		}{
			{"a", domainauth.RoleAdmin},
			{"b", domainauth.RoleUser},
			{"c", domainauth.RoleUser},
		} {
			_, err := repo.Grant(ctx, g.id, g.role, "")
			require.NoError(t, err)
		}

		all, err := repo.List(ctx, ListRolesOptions{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "a", all[0].UserID)

		users, err := repo.List(ctx, ListRolesOptions{Role: domainauth.RoleUser, Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "c", users[0].UserID)

		removed, err := repo.Revoke(ctx, "b")
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = repo.Revoke(ctx, "b")
		require.NoError(t, err)
		assert.False(t, removed)

		_, err = repo.Get(ctx, "b")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))

		got, err := repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, domainauth.RoleAdmin, got.Role)
	})
}

func TestRoleRepo_RejectsUnknownRoleAtDatabase(t *testing.T) {
	testutil.WithEphemeralDB(t, func(db *sql.DB) {
		_, err := db.ExecContext(context.Background(),
			`INSERT INTO user_roles (user_id, role) VALUES ('x', 'owner')`)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(apperrors.MapDBError(err)))
	})
}
