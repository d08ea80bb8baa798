// Package refreshstore persists refresh-token metadata with family
// chaining and exposes the atomic consume-once marker that RefreshUseCase
// relies on for reuse detection. Redis is the primary backend; Postgres
// (GORM) and MongoDB variants back deployments with an existing durable
// system of record, and an in-memory variant exists for tests only.
package refreshstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by FindByJti when no record exists for a jti.
var ErrNotFound = errors.New("refreshstore: record not found")

// Record is a single refresh token's metadata, chained to its family by
// FamilyID and, except for the family's first record, PreviousJti.
type Record struct {
	JTI         string
	Username    string
	FamilyID    string
	PreviousJti string // empty for the family's initial record
	Revoked     bool
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Store is the C4 RefreshTokenStore contract.
type Store interface {
	Save(ctx context.Context, rec Record) error
	FindByJti(ctx context.Context, jti string) (Record, error)
	Revoke(ctx context.Context, jti string) error
	RevokeFamily(ctx context.Context, familyID string) error
	DeleteAllForUser(ctx context.Context, username string) error
	FindAllForUser(ctx context.Context, username string) ([]string, error)
	DeleteExpired(ctx context.Context, before time.Time) (int, error)

	// ConsumeOnce marks jti as consumed for ttl. It reports true the
	// first time it is called for a given jti within the TTL window,
	// and false on every subsequent call (the atomic serialization
	// point required by RefreshUseCase step 5).
	ConsumeOnce(ctx context.Context, jti string, ttl time.Duration) (firstConsumer bool, err error)
}
