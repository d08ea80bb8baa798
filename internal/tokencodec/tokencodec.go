// Package tokencodec mints and verifies signed JWTs. It performs only
// cryptographic and temporal validation; semantic claim checks belong to
// tokenvalidator.
package tokencodec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/suleymanmyradov/auth-core/internal/clock"
	"github.com/suleymanmyradov/auth-core/internal/domain"
	"github.com/suleymanmyradov/auth-core/internal/keymaterial"
)

// Codec mints and verifies RS256 JWTs against a KeyMaterial instance.
type Codec struct {
	keys   *keymaterial.KeyMaterial
	issuer string
	clock  clock.Clock
}

// New builds a Codec bound to keys and issuer, reading time from clk.
func New(keys *keymaterial.KeyMaterial, issuer string, clk clock.Clock) *Codec {
	return &Codec{keys: keys, issuer: issuer, clock: clk}
}

// Mint builds and signs a JWT for subject carrying userID, roles, and
// scopes (roles/scopes empty for refresh tokens), valid for ttl, scoped
// to audience and tokenUse.
func (c *Codec) Mint(ctx context.Context, subject, userID string, roles, scopes []string, ttl time.Duration, audience string, tokenUse domain.TokenUse) (string, domain.JwtClaims, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.JwtClaims{}, fmt.Errorf("tokencodec: context canceled: %w", err)
	}
	if tokenUse == domain.TokenUseRefresh && (len(roles) != 0 || len(scopes) != 0) {
		return "", domain.JwtClaims{}, fmt.Errorf("tokencodec: refresh tokens must not carry roles or scopes")
	}

	jti := uuid.NewString()
	now := c.clock.Now()
	exp := now.Add(ttl)

	kid, privateKey := c.keys.ActiveSigningKey()
	if privateKey == nil {
		return "", domain.JwtClaims{}, fmt.Errorf("tokencodec: no private key configured for active kid %q", kid)
	}

	claims := jwt.MapClaims{
		"iss":       c.issuer,
		"sub":       subject,
		"uid":       userID,
		"jti":       jti,
		"aud":       jwt.ClaimStrings{audience},
		"iat":       jwt.NewNumericDate(now),
		"nbf":       jwt.NewNumericDate(now),
		"exp":       jwt.NewNumericDate(exp),
		"token_use": string(tokenUse),
		"roles":     roles,
		"scopes":    scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	if err := ctx.Err(); err != nil {
		return "", domain.JwtClaims{}, fmt.Errorf("tokencodec: context canceled before signing: %w", err)
	}

	signed, err := token.SignedString(privateKey)
	if err != nil {
		return "", domain.JwtClaims{}, fmt.Errorf("tokencodec: sign: %w", err)
	}

	return signed, domain.JwtClaims{
		Issuer:    c.issuer,
		Subject:   subject,
		UserID:    userID,
		JTI:       jti,
		Audience:  []string{audience},
		IssuedAt:  now,
		NotBefore: now,
		ExpiresAt: exp,
		TokenUse:  tokenUse,
		Roles:     roles,
		Scopes:    scopes,
	}, nil
}

// Verify parses, selects the verification key by kid, checks the
// signature, and enforces nbf/exp with zero tolerance.
func (c *Codec) Verify(tokenString string) (domain.JwtClaims, error) {
	var kid string

	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		k, ok := token.Header["kid"].(string)
		if !ok || k == "" {
			return nil, domain.ErrJWTUnknownKid
		}
		kid = k
		pub, ok := c.keys.VerificationKey(k)
		if !ok {
			return nil, domain.ErrJWTUnknownKid
		}
		return pub, nil
	}, jwt.WithoutClaimsValidation())

	if err != nil {
		if errors.Is(err, domain.ErrJWTUnknownKid) {
			return domain.JwtClaims{}, domain.ErrJWTUnknownKid
		}
		return domain.JwtClaims{}, fmt.Errorf("%w: %v", domain.ErrJWTBadSignature, err)
	}
	if !parsed.Valid {
		return domain.JwtClaims{}, domain.ErrJWTInvalid
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return domain.JwtClaims{}, domain.ErrJWTInvalid
	}

	result, err := toDomainClaims(claims, kid)
	if err != nil {
		return domain.JwtClaims{}, err
	}

	now := c.clock.Now()
	if !now.Before(result.ExpiresAt) {
		return domain.JwtClaims{}, domain.ErrJWTExpired
	}
	if now.Before(result.NotBefore) {
		return domain.JwtClaims{}, domain.ErrJWTInvalid
	}

	return result, nil
}

// ExtractJti performs full verification and returns only the jti.
func (c *Codec) ExtractJti(tokenString string) (string, error) {
	claims, err := c.Verify(tokenString)
	if err != nil {
		return "", err
	}
	return claims.JTI, nil
}

// ExtractSubject performs full verification and returns only the subject.
func (c *Codec) ExtractSubject(tokenString string) (string, error) {
	claims, err := c.Verify(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func toDomainClaims(claims jwt.MapClaims, kid string) (domain.JwtClaims, error) {
	sub, _ := claims["sub"].(string)
	uid, _ := claims["uid"].(string)
	jti, _ := claims["jti"].(string)
	iss, _ := claims["iss"].(string)
	tokenUseRaw, _ := claims["token_use"].(string)

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return domain.JwtClaims{}, domain.ErrJWTMissingClaim
	}
	nbf, err := claims.GetNotBefore()
	if err != nil || nbf == nil {
		return domain.JwtClaims{}, domain.ErrJWTMissingClaim
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return domain.JwtClaims{}, domain.ErrJWTMissingClaim
	}
	aud, err := claims.GetAudience()
	if err != nil {
		return domain.JwtClaims{}, domain.ErrJWTMissingClaim
	}

	return domain.JwtClaims{
		Issuer:    iss,
		Subject:   sub,
		UserID:    uid,
		JTI:       jti,
		Audience:  []string(aud),
		IssuedAt:  iat.Time,
		NotBefore: nbf.Time,
		ExpiresAt: exp.Time,
		TokenUse:  domain.TokenUse(tokenUseRaw),
		Roles:     toStringSlice(claims["roles"]),
		Scopes:    toStringSlice(claims["scopes"]),
	}, nil
}

func toStringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
