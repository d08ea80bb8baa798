package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suleymanmyradov/auth-core/internal/attemptpolicy"
	"github.com/suleymanmyradov/auth-core/internal/clock"
	"github.com/suleymanmyradov/auth-core/internal/domain"
	"github.com/suleymanmyradov/auth-core/internal/passwordhasher"
	"github.com/suleymanmyradov/auth-core/internal/refreshstore"
	"github.com/suleymanmyradov/auth-core/internal/sessionregistry"
	"github.com/suleymanmyradov/auth-core/internal/useraccount"
)

func newTestLogin(t *testing.T, clk clock.Clock, maxAttempts int) (*LoginUseCase, *useraccount.MemoryGateway, refreshstore.Store, sessionregistry.Registry) {
	t.Helper()

	hasher := passwordhasher.NewBcryptHasher(4)
	hash, err := hasher.Hash("admin123")
	require.NoError(t, err)

	accounts := useraccount.NewMemoryGateway()
	accounts.Put(domain.User{
		ID:       "u1",
		Username: "admin",
		Status:   domain.UserActive,
		Roles: []domain.Role{
			{Name: "ROLE_ADMIN", Scopes: []domain.Scope{"user:manage", "profile:read", "profile:write"}},
		},
		PasswordHash: hash,
	})

	attempts := attemptpolicy.NewMemoryPolicy(clk, maxAttempts, time.Minute, time.Minute)
	validator := NewAuthenticationValidator(accounts, hasher)
	minter := &fakeMinter{clock: clk}
	refreshStore := refreshstore.NewMemoryStore(clk.Now)
	sessions := sessionregistry.NewMemoryRegistry(clk)

	login := NewLoginUseCase(attempts, validator, minter, refreshStore, sessions, clk, 15*time.Minute, 24*time.Hour, "aud:access", "aud:refresh")
	return login, accounts, refreshStore, sessions
}

func TestLogin_HappyPath(t *testing.T) {
	clk := clock.NewMutable(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	login, _, refreshStore, sessions := newTestLogin(t, clk, 5)

	pair, err := login.Login(context.Background(), "203.0.113.7", "admin", "admin123")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	active, err := sessions.ActiveSessions(context.Background(), "admin")
	require.NoError(t, err)
	assert.Len(t, active, 1)

	rec, err := refreshStore.FindByJti(context.Background(), active[0])
	require.NoError(t, err)
	assert.Equal(t, "admin", rec.Username)
	assert.False(t, rec.Revoked)
}

func TestLogin_WrongPasswordAndUnknownUserReturnSameError(t *testing.T) {
	clk := clock.NewMutable(time.Now())
	login, _, _, _ := newTestLogin(t, clk, 5)

	_, err1 := login.Login(context.Background(), "key1", "admin", "wrong")
	_, err2 := login.Login(context.Background(), "key2", "ghost", "whatever")

	assert.ErrorIs(t, err1, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, err2, domain.ErrInvalidCredentials)
}

func TestLogin_LockedAccountRejected(t *testing.T) {
	clk := clock.NewMutable(time.Now())
	login, accounts, _, _ := newTestLogin(t, clk, 5)

	hasher := passwordhasher.NewBcryptHasher(4)
	hash, _ := hasher.Hash("pw")
	accounts.Put(domain.User{Username: "locked-user", Status: domain.UserLocked, PasswordHash: hash})

	_, err := login.Login(context.Background(), "key", "locked-user", "pw")
	assert.ErrorIs(t, err, domain.ErrUserLocked)
}

func TestLogin_BruteForceLockoutAfterMaxAttempts(t *testing.T) {
	clk := clock.NewMutable(time.Now())
	login, _, _, _ := newTestLogin(t, clk, 3)

	for i := 0; i < 3; i++ {
		_, err := login.Login(context.Background(), "203.0.113.7", "admin", "wrong")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}

	_, err := login.Login(context.Background(), "203.0.113.7", "admin", "wrong")
	var retryAfter *domain.RetryAfterError
	require.ErrorAs(t, err, &retryAfter)
	assert.Greater(t, retryAfter.RetryAfterSeconds, int64(0))

	// A correct password is still rejected while blocked: C9 must not run.
	_, err = login.Login(context.Background(), "203.0.113.7", "admin", "admin123")
	require.ErrorAs(t, err, &retryAfter)
}

func TestLogin_ScopesResolvedFromRoles(t *testing.T) {
	clk := clock.NewMutable(time.Now())
	login, _, refreshStore, sessions := newTestLogin(t, clk, 5)

	_, err := login.Login(context.Background(), "key", "admin", "admin123")
	require.NoError(t, err)

	active, _ := sessions.ActiveSessions(context.Background(), "admin")
	require.Len(t, active, 1)
	_, err = refreshStore.FindByJti(context.Background(), active[0])
	require.NoError(t, err)

	access, ok := login.tokens.(*fakeMinter).lastMinted(domain.TokenUseAccess)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"user:manage", "profile:read", "profile:write"}, access.Scopes)
}
