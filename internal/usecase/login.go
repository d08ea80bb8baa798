package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/auth-core/internal/attemptpolicy"
	"github.com/suleymanmyradov/auth-core/internal/clock"
	"github.com/suleymanmyradov/auth-core/internal/domain"
	"github.com/suleymanmyradov/auth-core/internal/refreshstore"
	"github.com/suleymanmyradov/auth-core/internal/scopepolicy"
	"github.com/suleymanmyradov/auth-core/internal/sessionregistry"
)

// TokenMinter is the subset of tokencodec.Codec the use cases depend on.
type TokenMinter interface {
	Mint(ctx context.Context, subject, userID string, roles, scopes []string, ttl time.Duration, audience string, tokenUse domain.TokenUse) (string, domain.JwtClaims, error)
}

// LoginUseCase implements the ordered login flow: rate-limit check,
// credential validation, token minting, and session bookkeeping.
type LoginUseCase struct {
	attempts        attemptpolicy.Policy
	validator       *AuthenticationValidator
	tokens          TokenMinter
	refreshStore    refreshstore.Store
	sessions        sessionregistry.Registry
	clock           clock.Clock
	accessTTL       time.Duration
	refreshTTL      time.Duration
	accessAudience  string
	refreshAudience string
}

// NewLoginUseCase wires every collaborator the login flow needs.
func NewLoginUseCase(
	attempts attemptpolicy.Policy,
	validator *AuthenticationValidator,
	tokens TokenMinter,
	refreshStore refreshstore.Store,
	sessions sessionregistry.Registry,
	clk clock.Clock,
	accessTTL, refreshTTL time.Duration,
	accessAudience, refreshAudience string,
) *LoginUseCase {
	return &LoginUseCase{
		attempts:        attempts,
		validator:       validator,
		tokens:          tokens,
		refreshStore:    refreshStore,
		sessions:        sessions,
		clock:           clk,
		accessTTL:       accessTTL,
		refreshTTL:      refreshTTL,
		accessAudience:  accessAudience,
		refreshAudience: refreshAudience,
	}
}

// Login executes the nine-step login flow described in the component
// design. Step ordering matters: attempt registration runs before
// credential validation so the user store never sees unauthenticated
// load from a key already over its attempt budget.
func (u *LoginUseCase) Login(ctx context.Context, rateLimitKey, username, password string) (domain.MintedTokenPair, error) {
	outcome, err := u.attempts.RegisterAttempt(ctx, rateLimitKey)
	if err != nil {
		return domain.MintedTokenPair{}, fmt.Errorf("login: register attempt: %w", err)
	}
	if outcome.Blocked {
		return domain.MintedTokenPair{}, &domain.RetryAfterError{RetryAfterSeconds: outcome.RetryAfterSeconds}
	}

	user, err := u.validator.Validate(ctx, username, password)
	if err != nil {
		return domain.MintedTokenPair{}, err
	}

	scopes := scopepolicy.Resolve(user)
	roleNames := scopepolicy.RoleNames(user)
	scopeNames := make([]string, 0, len(scopes))
	for _, s := range scopes {
		scopeNames = append(scopeNames, string(s))
	}

	familyID := uuid.NewString()

	accessToken, _, err := u.tokens.Mint(ctx, user.Username, user.ID, roleNames, scopeNames, u.accessTTL, u.accessAudience, domain.TokenUseAccess)
	if err != nil {
		return domain.MintedTokenPair{}, fmt.Errorf("login: mint access token: %w", err)
	}
	refreshToken, refreshClaims, err := u.tokens.Mint(ctx, user.Username, user.ID, nil, nil, u.refreshTTL, u.refreshAudience, domain.TokenUseRefresh)
	if err != nil {
		return domain.MintedTokenPair{}, fmt.Errorf("login: mint refresh token: %w", err)
	}

	rec := refreshstore.Record{
		JTI:       refreshClaims.JTI,
		Username:  user.Username,
		FamilyID:  familyID,
		Revoked:   false,
		IssuedAt:  refreshClaims.IssuedAt,
		ExpiresAt: refreshClaims.ExpiresAt,
	}
	if err := u.refreshStore.Save(ctx, rec); err != nil {
		return domain.MintedTokenPair{}, fmt.Errorf("login: persist refresh record: %w", err)
	}

	if err := u.sessions.RegisterSession(ctx, user.Username, refreshClaims.JTI, refreshClaims.ExpiresAt); err != nil {
		logx.WithContext(ctx).Errorf("login: register session failed for %s: %v", user.Username, err)
	}

	if err := u.attempts.ResetAttempts(ctx, rateLimitKey); err != nil {
		logx.WithContext(ctx).Errorf("login: reset attempts failed for key %s: %v", rateLimitKey, err)
	}

	return domain.MintedTokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExpiry: u.clock.Now().Add(u.accessTTL),
	}, nil
}
