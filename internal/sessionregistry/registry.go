// Package sessionregistry enumerates a user's active refresh-token jtis
// with lazy expiry on every read.
package sessionregistry

import (
	"context"
	"time"
)

// Registry is the C6 SessionRegistry contract.
type Registry interface {
	RegisterSession(ctx context.Context, username, jti string, expiresAt time.Time) error
	ActiveSessions(ctx context.Context, username string) ([]string, error)
	RemoveSession(ctx context.Context, username, jti string) error
	RemoveAll(ctx context.Context, username string) error
	Count(ctx context.Context, username string) (int, error)
}
