package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suleymanmyradov/auth-core/internal/blacklist"
	"github.com/suleymanmyradov/auth-core/internal/clock"
	"github.com/suleymanmyradov/auth-core/internal/domain"
	"github.com/suleymanmyradov/auth-core/internal/passwordhasher"
	"github.com/suleymanmyradov/auth-core/internal/refreshstore"
	"github.com/suleymanmyradov/auth-core/internal/sessionregistry"
	"github.com/suleymanmyradov/auth-core/internal/tokenvalidator"
	"github.com/suleymanmyradov/auth-core/internal/useraccount"
)

// stubCodec feeds tokenvalidator.Validator pre-built claims keyed by the
// raw token string, so refresh tests don't need real JWT signing.
type stubCodec struct {
	byToken map[string]domain.JwtClaims
}

func (s *stubCodec) Verify(token string) (domain.JwtClaims, error) {
	claims, ok := s.byToken[token]
	if !ok {
		return domain.JwtClaims{}, domain.ErrJWTInvalid
	}
	return claims, nil
}

func newTestRefresh(t *testing.T, clk clock.Clock) (*RefreshUseCase, *stubCodec, refreshstore.Store, blacklist.Blacklist, sessionregistry.Registry) {
	t.Helper()

	hasher := passwordhasher.NewBcryptHasher(4)
	accounts := useraccount.NewMemoryGateway()
	accounts.Put(domain.User{Username: "admin", Status: domain.UserActive})

	codec := &stubCodec{byToken: map[string]domain.JwtClaims{}}
	validator := tokenvalidator.New(codec, "auth-core-test", "aud:access", "aud:refresh")

	refreshStore := refreshstore.NewMemoryStore(clk.Now)
	bl := blacklist.NewMemoryBlacklist(clk)
	sessions := sessionregistry.NewMemoryRegistry(clk)
	minter := &fakeMinter{clock: clk}

	uc := NewRefreshUseCase(validator, refreshStore, bl, sessions, accounts, minter, clk,
		15*time.Minute, 24*time.Hour, "aud:access", "aud:refresh", true)

	return uc, codec, refreshStore, bl, sessions
}

func seedRefreshToken(t *testing.T, codec *stubCodec, store refreshstore.Store, clk clock.Clock, token, jti, familyID, previousJti string) {
	t.Helper()
	now := clk.Now()
	claims := domain.JwtClaims{
		Issuer: "auth-core-test", Subject: "admin", JTI: jti,
		Audience: []string{"aud:refresh"}, TokenUse: domain.TokenUseRefresh,
		IssuedAt: now, NotBefore: now, ExpiresAt: now.Add(24 * time.Hour),
	}
	codec.byToken[token] = claims
	require.NoError(t, store.Save(context.Background(), refreshstore.Record{
		JTI: jti, Username: "admin", FamilyID: familyID, PreviousJti: previousJti,
		IssuedAt: now, ExpiresAt: now.Add(24 * time.Hour),
	}))
}

func TestRefresh_HappyPathRotatesToken(t *testing.T) {
	clk := clock.NewMutable(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	uc, codec, store, bl, sessions := newTestRefresh(t, clk)
	seedRefreshToken(t, codec, store, clk, "R1", "j1", "f1", "")

	pair, err := uc.Refresh(context.Background(), "R1")
	require.NoError(t, err)
	assert.NotEqual(t, "R1", pair.RefreshToken)

	oldRec, err := store.FindByJti(context.Background(), "j1")
	require.NoError(t, err)
	assert.True(t, oldRec.Revoked)

	revoked, err := bl.IsRevoked(context.Background(), "j1")
	require.NoError(t, err)
	assert.True(t, revoked)

	active, err := sessions.ActiveSessions(context.Background(), "admin")
	require.NoError(t, err)
	assert.NotContains(t, active, "j1")
}

func TestRefresh_UnknownTokenRejected(t *testing.T) {
	clk := clock.NewMutable(time.Now())
	uc, _, _, _, _ := newTestRefresh(t, clk)

	_, err := uc.Refresh(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, domain.ErrJWTInvalid)
}

func TestRefresh_ExpiredRecordRejected(t *testing.T) {
	clk := clock.NewMutable(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	uc, codec, store, _, _ := newTestRefresh(t, clk)

	now := clk.Now()
	claims := domain.JwtClaims{
		Issuer: "auth-core-test", Subject: "admin", JTI: "j1",
		Audience: []string{"aud:refresh"}, TokenUse: domain.TokenUseRefresh,
		IssuedAt: now, NotBefore: now, ExpiresAt: now.Add(time.Hour),
	}
	codec.byToken["R1"] = claims
	require.NoError(t, store.Save(context.Background(), refreshstore.Record{
		JTI: "j1", Username: "admin", FamilyID: "f1", IssuedAt: now, ExpiresAt: now,
	}))

	_, err := uc.Refresh(context.Background(), "R1")
	assert.ErrorIs(t, err, domain.ErrRefreshExpired)
}

func TestRefresh_ReuseOfAlreadyRotatedTokenRevokesFamily(t *testing.T) {
	clk := clock.NewMutable(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	uc, codec, store, _, _ := newTestRefresh(t, clk)
	seedRefreshToken(t, codec, store, clk, "R1", "j1", "f1", "")

	pair, err := uc.Refresh(context.Background(), "R1")
	require.NoError(t, err)

	// The stub codec only knows seeded tokens; register R2 with the
	// claims the minter issued for it so the refresh reaches the store.
	r2Claims, ok := uc.tokens.(*fakeMinter).lastMinted(domain.TokenUseRefresh)
	require.True(t, ok)
	codec.byToken[pair.RefreshToken] = r2Claims

	// R1 reused after rotation.
	_, err = uc.Refresh(context.Background(), "R1")
	assert.ErrorIs(t, err, domain.ErrRefreshReuse)

	// The newly-issued R2 is now also unusable: its family was revoked.
	_, err = uc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrRefreshReuse)
}

func TestRefresh_ConcurrentRotationExactlyOneWinnerRestLoseToReuse(t *testing.T) {
	clk := clock.NewMutable(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	uc, codec, store, _, _ := newTestRefresh(t, clk)
	seedRefreshToken(t, codec, store, clk, "R1", "j1", "f1", "")

	const n = 20
	var wg sync.WaitGroup
	var successes int32
	var mu sync.Mutex
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := uc.Refresh(context.Background(), "R1")
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes)
}
