// Package usecase implements the ordered login and refresh flows that
// sit atop the core components.
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/suleymanmyradov/auth-core/internal/domain"
	"github.com/suleymanmyradov/auth-core/internal/passwordhasher"
	"github.com/suleymanmyradov/auth-core/internal/useraccount"
)

// AuthenticationValidator is the C9 contract: username/password in,
// a validated ACTIVE user out.
type AuthenticationValidator struct {
	accounts useraccount.Gateway
	hasher   passwordhasher.Hasher
}

// NewAuthenticationValidator wires a Gateway and Hasher together.
func NewAuthenticationValidator(accounts useraccount.Gateway, hasher passwordhasher.Hasher) *AuthenticationValidator {
	return &AuthenticationValidator{accounts: accounts, hasher: hasher}
}

// Validate resolves username (matched case-insensitively against
// either username or email by the gateway), checks account status,
// and verifies password. The not-found and wrong-password paths return
// the identical error so lookups can't be used to enumerate accounts.
func (v *AuthenticationValidator) Validate(ctx context.Context, username, password string) (domain.User, error) {
	user, err := v.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, useraccount.ErrNotFound) {
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("authvalidator: lookup user: %w", err)
	}

	switch user.Status {
	case domain.UserActive:
		// continue
	case domain.UserLocked:
		return domain.User{}, domain.ErrUserLocked
	case domain.UserDisabled:
		return domain.User{}, domain.ErrUserDisabled
	case domain.UserDeleted:
		return domain.User{}, domain.ErrUserDeleted
	default:
		return domain.User{}, domain.ErrUserDisabled
	}

	if !v.hasher.Verify(user.PasswordHash, password) {
		return domain.User{}, domain.ErrInvalidCredentials
	}

	return user, nil
}
