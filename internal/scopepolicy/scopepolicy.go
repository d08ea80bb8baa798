// Package scopepolicy resolves the full set of scopes a user is
// entitled to mint into an access token.
package scopepolicy

import "github.com/suleymanmyradov/auth-core/internal/domain"

// Resolve returns the full resolved scope set: the union of every
// role's declared scopes plus any scopes granted directly to the user,
// deduplicated.
func Resolve(user domain.User) []domain.Scope {
	seen := make(map[domain.Scope]struct{})
	var resolved []domain.Scope

	add := func(s domain.Scope) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		resolved = append(resolved, s)
	}

	for _, role := range user.Roles {
		for _, s := range role.Scopes {
			add(s)
		}
	}
	for _, s := range user.Scopes {
		add(s)
	}

	return resolved
}

// RoleNames returns the user's role names in declaration order.
func RoleNames(user domain.User) []string {
	names := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		names = append(names, r.Name)
	}
	return names
}
