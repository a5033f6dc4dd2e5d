package authroles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
)

func TestStaticRoleStore_RolesForUser(t *testing.T) {
	store := NewStaticRoleStore([]string{"admin-1", " both "}, []string{"user-1", "both", ""})

	tests := []struct {
		name   string
		userID string
		want   []domainauth.Role
	}{
		{name: "admin", userID: "admin-1", want: []domainauth.Role{domainauth.RoleAdmin}},
		{name: "user", userID: "user-1", want: []domainauth.Role{domainauth.RoleUser}},
		{name: "listed twice", userID: "both", want: []domainauth.Role{domainauth.RoleAdmin, domainauth.RoleUser}},
		{name: "unknown", userID: "nobody", want: nil},
		{name: "blank entry ignored", userID: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.RolesForUser(context.Background(), tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStaticRoleStore_CanceledContext(t *testing.T) {
	store := NewStaticRoleStore([]string{"admin-1"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.RolesForUser(ctx, "admin-1")
	require.ErrorIs(t, err, context.Canceled)
}
