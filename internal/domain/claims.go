package domain

import "time"

// TokenUse distinguishes access tokens from refresh tokens; carried in
// the token_use claim.
type TokenUse string

const (
	TokenUseAccess  TokenUse = "access"
	TokenUseRefresh TokenUse = "refresh"
)

// JwtClaims is the canonical, validated claim set produced by
// StrictTokenValidator and consumed throughout the core. It never
// leaves the process boundary raw; handlers map it to transport DTOs.
type JwtClaims struct {
	Issuer    string
	Subject   string
	UserID    string
	JTI       string
	Audience  []string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
	TokenUse  TokenUse
	Roles     []string
	Scopes    []string
}

// IsRefresh reports whether these claims describe a refresh token.
func (c JwtClaims) IsRefresh() bool { return c.TokenUse == TokenUseRefresh }

// IsAccess reports whether these claims describe an access token.
func (c JwtClaims) IsAccess() bool { return c.TokenUse == TokenUseAccess }

// HasAudience reports whether aud is present in the claim's audience list.
func (c JwtClaims) HasAudience(aud string) bool {
	for _, a := range c.Audience {
		if a == aud {
			return true
		}
	}
	return false
}

// MintedTokenPair is what LoginUseCase and RefreshUseCase return to their
// callers.
type MintedTokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExpiry time.Time
}
