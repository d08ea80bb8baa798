// Package authz implements the AuthorizationFilter middleware: it
// validates the bearer access token on every request, populates the
// request principal on success, and otherwise continues unauthenticated
// rather than ever failing the request with a 5xx.
package authz

import (
	"context"
	"net/http"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/auth-core/internal/blacklist"
	"github.com/suleymanmyradov/auth-core/internal/domain"
)

type contextKey int

// PrincipalKey is the context key AuthorizationFilter stores the
// resolved Principal under.
const PrincipalKey contextKey = iota

// Principal is the authenticated identity attached to the request
// context by Filter.
type Principal struct {
	Username string
	UserID   string
	Roles    []string
	Scopes   []string
}

// Validator is the subset of tokenvalidator.Validator Filter depends on.
type Validator interface {
	ValidateAccess(tokenString string) (domain.JwtClaims, error)
}

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// Filter is the C12 AuthorizationFilter: a go-zero rest.Middleware that
// never rejects a request itself, it only attaches or withholds a
// Principal for downstream handlers to check.
type Filter struct {
	validator Validator
	blacklist blacklist.Blacklist
}

// New builds a Filter.
func New(validator Validator, bl blacklist.Blacklist) *Filter {
	return &Filter{validator: validator, blacklist: bl}
}

// Handle is a rest.Middleware: it wraps next, attaching a Principal to
// the request context whenever the bearer token validates and is not
// blacklisted, and otherwise passing the request through unmodified.
func (f *Filter) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(authorizationHeader)
		if header == "" || !strings.HasPrefix(header, bearerPrefix) {
			next(w, r)
			return
		}

		token := strings.TrimPrefix(header, bearerPrefix)

		claims, err := f.validator.ValidateAccess(token)
		if err != nil {
			next(w, r)
			return
		}

		revoked, err := f.blacklist.IsRevoked(r.Context(), claims.JTI)
		if err != nil {
			logx.WithContext(r.Context()).Errorf("authz: blacklist check failed for jti %s: %v", claims.JTI, err)
			next(w, r)
			return
		}
		if revoked {
			next(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), PrincipalKey, Principal{
			Username: claims.Subject,
			UserID:   claims.UserID,
			Roles:    claims.Roles,
			Scopes:   claims.Scopes,
		})
		next(w, r.WithContext(ctx))
	}
}

// FromContext retrieves the Principal attached by Filter, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(Principal)
	return p, ok
}
