package authroles

import (
	"context"
	"strings"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
	"github.com/target/greenhouse/internal/ports"
)

// StaticRoleStore serves role rows from configured user lists.
// Used in mock mode and in environments without a database.
type StaticRoleStore struct {
	admins map[string]struct{}
	users  map[string]struct{}
}

// NewStaticRoleStore builds a store from admin and user id lists. Blank entries are ignored.
// A user listed in both yields two rows, which the resolver reports as an integrity error.
func NewStaticRoleStore(adminUsers, users []string) *StaticRoleStore {
	return &StaticRoleStore{
		admins: toSet(adminUsers),
		users:  toSet(users),
	}
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}

// RolesForUser implements ports.RoleStore.
func (s *StaticRoleStore) RolesForUser(ctx context.Context, userID string) ([]domainauth.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []domainauth.Role
	if _, ok := s.admins[userID]; ok {
		rows = append(rows, domainauth.RoleAdmin)
	}
	if _, ok := s.users[userID]; ok {
		rows = append(rows, domainauth.RoleUser)
	}
	return rows, nil
}

var _ ports.RoleStore = (*StaticRoleStore)(nil)
