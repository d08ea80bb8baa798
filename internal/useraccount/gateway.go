// Package useraccount resolves the read-only identity record the core
// authenticates against. The core never writes through this gateway.
package useraccount

import (
	"context"
	"errors"

	"github.com/suleymanmyradov/auth-core/internal/domain"
)

// ErrNotFound is returned when no account matches the given username.
var ErrNotFound = errors.New("useraccount: not found")

// Gateway is the C13 UserAccountGateway contract.
type Gateway interface {
	FindByUsername(ctx context.Context, username string) (domain.User, error)
}
