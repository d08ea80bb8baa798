package useraccount

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/suleymanmyradov/auth-core/internal/domain"
)

// PostgresGateway resolves accounts from Postgres via sqlx, matching
// the identifier case-insensitively against username or email.
type PostgresGateway struct {
	db *sqlx.DB
}

// NewPostgresGateway wraps an already-open *sqlx.DB.
func NewPostgresGateway(db *sqlx.DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

type userRow struct {
	ID           string `db:"id"`
	Username     string `db:"username"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	Status       string `db:"status"`
}

type roleScopeRow struct {
	RoleName string `db:"role_name"`
	Scope    string `db:"scope"`
}

const findUserQuery = `
SELECT id, username, email, password_hash, status
FROM users
WHERE lower(username) = lower($1) OR lower(email) = lower($1)
`

const findRoleScopesQuery = `
SELECT r.name AS role_name, rs.scope AS scope
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
LEFT JOIN role_scopes rs ON rs.role_id = r.id
WHERE ur.user_id = $1
`

const findDirectScopesQuery = `
SELECT scope FROM user_scopes WHERE user_id = $1
`

func (g *PostgresGateway) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	var row userRow
	if err := g.db.GetContext(ctx, &row, findUserQuery, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("useraccount(postgres): find user: %w", err)
	}

	var roleScopeRows []roleScopeRow
	if err := g.db.SelectContext(ctx, &roleScopeRows, findRoleScopesQuery, row.ID); err != nil {
		return domain.User{}, fmt.Errorf("useraccount(postgres): find roles: %w", err)
	}

	roleMap := make(map[string][]domain.Scope)
	var roleOrder []string
	for _, rs := range roleScopeRows {
		if _, seen := roleMap[rs.RoleName]; !seen {
			roleOrder = append(roleOrder, rs.RoleName)
		}
		if rs.Scope != "" {
			roleMap[rs.RoleName] = append(roleMap[rs.RoleName], domain.Scope(rs.Scope))
		}
	}
	roles := make([]domain.Role, 0, len(roleOrder))
	for _, name := range roleOrder {
		roles = append(roles, domain.Role{Name: name, Scopes: roleMap[name]})
	}

	var directScopes []string
	if err := g.db.SelectContext(ctx, &directScopes, findDirectScopesQuery, row.ID); err != nil {
		return domain.User{}, fmt.Errorf("useraccount(postgres): find direct scopes: %w", err)
	}
	scopes := make([]domain.Scope, 0, len(directScopes))
	for _, s := range directScopes {
		scopes = append(scopes, domain.Scope(s))
	}

	return domain.User{
		ID:           row.ID,
		Username:     row.Username,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Status:       domain.UserStatus(row.Status),
		Roles:        roles,
		Scopes:       scopes,
	}, nil
}
