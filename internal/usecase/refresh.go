package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/auth-core/internal/blacklist"
	"github.com/suleymanmyradov/auth-core/internal/clock"
	"github.com/suleymanmyradov/auth-core/internal/domain"
	"github.com/suleymanmyradov/auth-core/internal/refreshstore"
	"github.com/suleymanmyradov/auth-core/internal/scopepolicy"
	"github.com/suleymanmyradov/auth-core/internal/sessionregistry"
	"github.com/suleymanmyradov/auth-core/internal/tokenvalidator"
	"github.com/suleymanmyradov/auth-core/internal/useraccount"
)

// RefreshUseCase implements the rotation core: validate, detect reuse,
// atomically consume, rotate. The atomic consume in step 5 is the
// serialization point; everything before it is read-only, everything
// after it assumes exclusive ownership of the old record.
type RefreshUseCase struct {
	validator       *tokenvalidator.Validator
	refreshStore    refreshstore.Store
	blacklist       blacklist.Blacklist
	sessions        sessionregistry.Registry
	accounts        useraccount.Gateway
	tokens          TokenMinter
	clock           clock.Clock
	accessTTL       time.Duration
	refreshTTL      time.Duration
	accessAudience  string
	refreshAudience string
	rotateRefresh   bool
}

// NewRefreshUseCase wires every collaborator the refresh flow needs.
// rotateRefresh selects whether a fresh refresh token is issued on
// every call (true) or the caller's refresh token is returned unchanged
// (false, access-token-only refresh).
func NewRefreshUseCase(
	validator *tokenvalidator.Validator,
	refreshStore refreshstore.Store,
	bl blacklist.Blacklist,
	sessions sessionregistry.Registry,
	accounts useraccount.Gateway,
	tokens TokenMinter,
	clk clock.Clock,
	accessTTL, refreshTTL time.Duration,
	accessAudience, refreshAudience string,
	rotateRefresh bool,
) *RefreshUseCase {
	return &RefreshUseCase{
		validator:       validator,
		refreshStore:    refreshStore,
		blacklist:       bl,
		sessions:        sessions,
		accounts:        accounts,
		tokens:          tokens,
		clock:           clk,
		accessTTL:       accessTTL,
		refreshTTL:      refreshTTL,
		accessAudience:  accessAudience,
		refreshAudience: refreshAudience,
		rotateRefresh:   rotateRefresh,
	}
}

// Refresh rotates rawRefreshToken into a fresh token pair, or returns
// ErrRefreshReuse and revokes the whole token family if reuse of an
// already-consumed token is detected.
func (u *RefreshUseCase) Refresh(ctx context.Context, rawRefreshToken string) (domain.MintedTokenPair, error) {
	claims, err := u.validator.ValidateRefresh(rawRefreshToken)
	if err != nil {
		return domain.MintedTokenPair{}, err
	}

	rec, err := u.refreshStore.FindByJti(ctx, claims.JTI)
	if err != nil {
		if errors.Is(err, refreshstore.ErrNotFound) {
			return domain.MintedTokenPair{}, domain.ErrRefreshUnknown
		}
		return domain.MintedTokenPair{}, fmt.Errorf("refresh: find record: %w", err)
	}

	if rec.Revoked {
		return domain.MintedTokenPair{}, u.handleReuse(ctx, rec)
	}

	now := u.clock.Now()
	if !rec.ExpiresAt.After(now) {
		return domain.MintedTokenPair{}, domain.ErrRefreshExpired
	}

	firstConsumer, err := u.refreshStore.ConsumeOnce(ctx, rec.JTI, rec.ExpiresAt.Sub(now))
	if err != nil {
		return domain.MintedTokenPair{}, fmt.Errorf("refresh: consume once: %w", err)
	}
	if !firstConsumer {
		return domain.MintedTokenPair{}, u.handleReuse(ctx, rec)
	}

	user, err := u.accounts.FindByUsername(ctx, rec.Username)
	if err != nil {
		return domain.MintedTokenPair{}, fmt.Errorf("refresh: resolve user: %w", err)
	}

	scopes := scopepolicy.Resolve(user)
	roleNames := scopepolicy.RoleNames(user)
	scopeNames := make([]string, 0, len(scopes))
	for _, s := range scopes {
		scopeNames = append(scopeNames, string(s))
	}

	newAccess, _, err := u.tokens.Mint(ctx, user.Username, user.ID, roleNames, scopeNames, u.accessTTL, u.accessAudience, domain.TokenUseAccess)
	if err != nil {
		return domain.MintedTokenPair{}, fmt.Errorf("refresh: mint access token: %w", err)
	}

	result := domain.MintedTokenPair{
		AccessToken:  newAccess,
		RefreshToken: rawRefreshToken,
		AccessExpiry: u.clock.Now().Add(u.accessTTL),
	}

	newJti := rec.JTI
	newExpiresAt := rec.ExpiresAt
	if u.rotateRefresh {
		newRefresh, newClaims, err := u.tokens.Mint(ctx, user.Username, user.ID, nil, nil, u.refreshTTL, u.refreshAudience, domain.TokenUseRefresh)
		if err != nil {
			return domain.MintedTokenPair{}, fmt.Errorf("refresh: mint refresh token: %w", err)
		}

		newRec := refreshstore.Record{
			JTI:         newClaims.JTI,
			Username:    rec.Username,
			FamilyID:    rec.FamilyID,
			PreviousJti: rec.JTI,
			Revoked:     false,
			IssuedAt:    newClaims.IssuedAt,
			ExpiresAt:   newClaims.ExpiresAt,
		}
		if err := u.refreshStore.Save(ctx, newRec); err != nil {
			return domain.MintedTokenPair{}, fmt.Errorf("refresh: persist new record: %w", err)
		}

		result.RefreshToken = newRefresh
		newJti = newClaims.JTI
		newExpiresAt = newClaims.ExpiresAt
	}

	if err := u.refreshStore.Revoke(ctx, rec.JTI); err != nil {
		return domain.MintedTokenPair{}, fmt.Errorf("refresh: revoke old record: %w", err)
	}
	if err := u.blacklist.Revoke(ctx, rec.JTI, rec.ExpiresAt); err != nil {
		return domain.MintedTokenPair{}, fmt.Errorf("refresh: blacklist old jti: %w", err)
	}
	if err := u.sessions.RemoveSession(ctx, rec.Username, rec.JTI); err != nil {
		logx.WithContext(ctx).Errorf("refresh: remove session %s failed: %v", rec.JTI, err)
	}
	if err := u.sessions.RegisterSession(ctx, rec.Username, newJti, newExpiresAt); err != nil {
		logx.WithContext(ctx).Errorf("refresh: register session %s failed: %v", newJti, err)
	}

	return result, nil
}

// handleReuse implements the reuse-detected branch shared by the
// already-revoked and lost-the-race-on-ConsumeOnce paths: the whole
// family is revoked and the presented jti is blacklisted so no later
// caller can observe it as valid.
func (u *RefreshUseCase) handleReuse(ctx context.Context, rec refreshstore.Record) error {
	if err := u.refreshStore.RevokeFamily(ctx, rec.FamilyID); err != nil {
		return fmt.Errorf("refresh: revoke family %s: %w", rec.FamilyID, err)
	}
	if err := u.blacklist.Revoke(ctx, rec.JTI, rec.ExpiresAt); err != nil {
		logx.WithContext(ctx).Errorf("refresh: blacklist reused jti %s failed: %v", rec.JTI, err)
	}
	return domain.ErrRefreshReuse
}
