package blacklist

import (
	"context"
	"sync"
	"time"

	"github.com/suleymanmyradov/auth-core/internal/clock"
)

// MemoryBlacklist is a mutex-guarded in-memory Blacklist, for test
// profiles only.
type MemoryBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time // jti -> expiresAt
	clock   clock.Clock
}

// NewMemoryBlacklist creates an empty MemoryBlacklist reading time
// from clk.
func NewMemoryBlacklist(clk clock.Clock) *MemoryBlacklist {
	return &MemoryBlacklist{entries: make(map[string]time.Time), clock: clk}
}

func (b *MemoryBlacklist) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !expiresAt.After(b.clock.Now()) {
		return nil
	}
	b.entries[jti] = expiresAt
	return nil
}

func (b *MemoryBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	exp, ok := b.entries[jti]
	if !ok {
		return false, nil
	}
	if !exp.After(b.clock.Now()) {
		delete(b.entries, jti)
		return false, nil
	}
	return true, nil
}
