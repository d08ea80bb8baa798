package sessionregistry

import (
	"context"
	"sync"
	"time"

	"github.com/suleymanmyradov/auth-core/internal/clock"
)

// MemoryRegistry is a mutex-guarded in-memory Registry, for test
// profiles only.
type MemoryRegistry struct {
	mu       sync.Mutex
	sessions map[string]map[string]time.Time // username -> jti -> expiresAt
	clock    clock.Clock
}

// NewMemoryRegistry creates an empty MemoryRegistry reading time from
// clk.
func NewMemoryRegistry(clk clock.Clock) *MemoryRegistry {
	return &MemoryRegistry{sessions: make(map[string]map[string]time.Time), clock: clk}
}

func (r *MemoryRegistry) RegisterSession(_ context.Context, username, jti string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[username] == nil {
		r.sessions[username] = make(map[string]time.Time)
	}
	r.sessions[username][jti] = expiresAt
	return nil
}

func (r *MemoryRegistry) ActiveSessions(_ context.Context, username string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	set := r.sessions[username]
	active := make([]string, 0, len(set))
	for jti, exp := range set {
		if exp.After(now) {
			active = append(active, jti)
		} else {
			delete(set, jti)
		}
	}
	return active, nil
}

func (r *MemoryRegistry) RemoveSession(_ context.Context, username, jti string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set := r.sessions[username]; set != nil {
		delete(set, jti)
	}
	return nil
}

func (r *MemoryRegistry) RemoveAll(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, username)
	return nil
}

func (r *MemoryRegistry) Count(ctx context.Context, username string) (int, error) {
	active, err := r.ActiveSessions(ctx, username)
	if err != nil {
		return 0, err
	}
	return len(active), nil
}
