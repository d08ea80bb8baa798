package useraccount

import (
	"context"
	"strings"
	"sync"

	"github.com/suleymanmyradov/auth-core/internal/domain"
)

// MemoryGateway is an in-memory Gateway fake for unit tests.
type MemoryGateway struct {
	mu    sync.RWMutex
	users map[string]domain.User // lowercased username -> user
}

// NewMemoryGateway builds an empty MemoryGateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{users: make(map[string]domain.User)}
}

// Put inserts or replaces a user record.
func (g *MemoryGateway) Put(u domain.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.users[strings.ToLower(u.Username)] = u
}

func (g *MemoryGateway) FindByUsername(_ context.Context, username string) (domain.User, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	u, ok := g.users[strings.ToLower(username)]
	if !ok {
		for _, candidate := range g.users {
			if candidate.Email != "" && strings.EqualFold(candidate.Email, username) {
				return candidate, nil
			}
		}
		return domain.User{}, ErrNotFound
	}
	return u, nil
}
