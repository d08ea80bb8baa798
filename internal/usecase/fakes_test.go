package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/suleymanmyradov/auth-core/internal/clock"
	"github.com/suleymanmyradov/auth-core/internal/domain"
)

// fakeMinter deterministically mints unique jtis without touching RSA,
// so usecase tests exercise orchestration logic rather than cryptography.
type fakeMinter struct {
	clock   clock.Clock
	counter int64

	mu     sync.Mutex
	minted []domain.JwtClaims
}

func (m *fakeMinter) Mint(_ context.Context, subject, userID string, roles, scopes []string, ttl time.Duration, audience string, use domain.TokenUse) (string, domain.JwtClaims, error) {
	n := atomic.AddInt64(&m.counter, 1)
	now := m.clock.Now()
	jti := fmt.Sprintf("jti-%d", n)
	claims := domain.JwtClaims{
		Issuer:    "auth-core-test",
		Subject:   subject,
		UserID:    userID,
		JTI:       jti,
		Audience:  []string{audience},
		IssuedAt:  now,
		NotBefore: now,
		ExpiresAt: now.Add(ttl),
		TokenUse:  use,
		Roles:     roles,
		Scopes:    scopes,
	}
	m.mu.Lock()
	m.minted = append(m.minted, claims)
	m.mu.Unlock()
	return "token-" + jti, claims, nil
}

// lastMinted returns the claims of the most recent token minted for use.
func (m *fakeMinter) lastMinted(use domain.TokenUse) (domain.JwtClaims, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.minted) - 1; i >= 0; i-- {
		if m.minted[i].TokenUse == use {
			return m.minted[i], true
		}
	}
	return domain.JwtClaims{}, false
}
