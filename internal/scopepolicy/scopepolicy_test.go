package scopepolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/suleymanmyradov/auth-core/internal/domain"
)

func TestResolve_UnionsRoleScopesAndDirectScopes(t *testing.T) {
	user := domain.User{
		Roles: []domain.Role{
			{Name: "ROLE_ADMIN", Scopes: []domain.Scope{"user:manage", "profile:read"}},
			{Name: "ROLE_EDITOR", Scopes: []domain.Scope{"profile:write", "profile:read"}},
		},
		Scopes: []domain.Scope{"billing:read"},
	}

	resolved := Resolve(user)
	assert.ElementsMatch(t, []domain.Scope{"user:manage", "profile:read", "profile:write", "billing:read"}, resolved)
}

func TestResolve_NoDuplicates(t *testing.T) {
	user := domain.User{
		Roles: []domain.Role{
			{Name: "ROLE_A", Scopes: []domain.Scope{"x:y"}},
			{Name: "ROLE_B", Scopes: []domain.Scope{"x:y"}},
		},
	}
	assert.Len(t, Resolve(user), 1)
}

func TestRoleNames_PreservesOrder(t *testing.T) {
	user := domain.User{Roles: []domain.Role{{Name: "ROLE_B"}, {Name: "ROLE_A"}}}
	assert.Equal(t, []string{"ROLE_B", "ROLE_A"}, RoleNames(user))
}
