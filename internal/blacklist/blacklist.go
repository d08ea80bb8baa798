// Package blacklist records revoked access/refresh-token jtis with a
// tombstone TTL equal to the token's remaining lifetime.
package blacklist

import (
	"context"
	"time"
)

// Blacklist is the C5 TokenBlacklist contract.
type Blacklist interface {
	// Revoke stores a tombstone for jti until expiresAt. Idempotent:
	// calling it twice for the same jti/expiresAt is a no-op the second
	// time.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
