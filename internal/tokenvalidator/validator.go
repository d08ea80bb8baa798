// Package tokenvalidator applies semantic claim checks on top of the
// cryptographic/temporal verification performed by tokencodec.
package tokenvalidator

import (
	"strings"

	"github.com/suleymanmyradov/auth-core/internal/domain"
)

// Codec is the subset of tokencodec.Codec the validator depends on.
type Codec interface {
	Verify(tokenString string) (domain.JwtClaims, error)
}

// Validator enforces issuer, audience, token_use, and claim-presence
// rules on top of a verified token.
type Validator struct {
	codec           Codec
	issuer          string
	accessAudience  string
	refreshAudience string
}

// New builds a Validator bound to codec and the configured issuer and
// per-use audiences.
func New(codec Codec, issuer, accessAudience, refreshAudience string) *Validator {
	return &Validator{
		codec:           codec,
		issuer:          issuer,
		accessAudience:  accessAudience,
		refreshAudience: refreshAudience,
	}
}

// ValidateAccess verifies tokenString and enforces that it is a
// well-formed ACCESS token for this issuer/audience.
func (v *Validator) ValidateAccess(tokenString string) (domain.JwtClaims, error) {
	return v.validate(tokenString, domain.TokenUseAccess)
}

// ValidateRefresh verifies tokenString and enforces that it is a
// well-formed REFRESH token for this issuer/audience.
func (v *Validator) ValidateRefresh(tokenString string) (domain.JwtClaims, error) {
	return v.validate(tokenString, domain.TokenUseRefresh)
}

func (v *Validator) validate(tokenString string, expected domain.TokenUse) (domain.JwtClaims, error) {
	claims, err := v.codec.Verify(tokenString)
	if err != nil {
		return domain.JwtClaims{}, err
	}

	if claims.Issuer != v.issuer {
		return domain.JwtClaims{}, domain.ErrJWTBadIssuer
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return domain.JwtClaims{}, domain.ErrJWTMissingClaim
	}
	if strings.TrimSpace(claims.JTI) == "" {
		return domain.JwtClaims{}, domain.ErrJWTMissingClaim
	}
	if claims.TokenUse == "" {
		return domain.JwtClaims{}, domain.ErrJWTMissingClaim
	}
	if claims.TokenUse != expected {
		return domain.JwtClaims{}, domain.ErrJWTBadType
	}
	if len(claims.Audience) == 0 {
		return domain.JwtClaims{}, domain.ErrJWTMissingClaim
	}

	expectedAudience := v.accessAudience
	if expected == domain.TokenUseRefresh {
		expectedAudience = v.refreshAudience
	}
	if !claims.HasAudience(expectedAudience) {
		return domain.JwtClaims{}, domain.ErrJWTBadAudience
	}

	if claims.TokenUse == domain.TokenUseRefresh && (len(claims.Roles) != 0 || len(claims.Scopes) != 0) {
		return domain.JwtClaims{}, domain.ErrJWTInvalid
	}

	return claims, nil
}
