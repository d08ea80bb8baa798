// Package handler wires HTTP routes to their logic and translates
// domain errors into the status codes named in the external interface
// design.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/suleymanmyradov/auth-core/internal/domain"
)

type errorBody struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int64  `json:"retryAfterSeconds,omitempty"`
}

// ErrorHandler maps a domain error to the (status, body) pair written
// over HTTP. Register it with httpx.SetErrorHandlerCtx at startup so
// every handler's httpx.ErrorCtx call goes through it.
func ErrorHandler(_ context.Context, err error) (int, interface{}) {
	return statusFor(err), errorBodyFor(err)
}

func statusFor(err error) int {
	var retryAfter *domain.RetryAfterError
	switch {
	case errors.As(err, &retryAfter):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUserLocked),
		errors.Is(err, domain.ErrUserDisabled),
		errors.Is(err, domain.ErrUserDeleted):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, domain.ErrJWTInvalid),
		errors.Is(err, domain.ErrJWTExpired),
		errors.Is(err, domain.ErrJWTUnknownKid),
		errors.Is(err, domain.ErrJWTBadSignature),
		errors.Is(err, domain.ErrJWTBadIssuer),
		errors.Is(err, domain.ErrJWTBadAudience),
		errors.Is(err, domain.ErrJWTBadType),
		errors.Is(err, domain.ErrJWTMissingClaim),
		errors.Is(err, domain.ErrRefreshUnknown),
		errors.Is(err, domain.ErrRefreshExpired),
		errors.Is(err, domain.ErrRefreshReuse):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func errorBodyFor(err error) errorBody {
	var retryAfter *domain.RetryAfterError
	if errors.As(err, &retryAfter) {
		return errorBody{Code: "ERR_RATE_LIMITED", Message: err.Error(), RetryAfterSec: retryAfter.RetryAfterSeconds}
	}
	return errorBody{Code: err.Error(), Message: err.Error()}
}

// WriteError writes err as an HTTP error response, setting the
// Retry-After header when err carries a RetryAfterError so rate-limited
// clients see it outside the JSON body as well.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var retryAfter *domain.RetryAfterError
	if errors.As(err, &retryAfter) {
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfter.RetryAfterSeconds, 10))
	}
	httpx.ErrorCtx(r.Context(), w, err)
}
