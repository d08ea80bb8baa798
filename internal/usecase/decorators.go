package usecase

import (
	"context"
	"errors"

	"github.com/suleymanmyradov/auth-core/internal/audit"
	"github.com/suleymanmyradov/auth-core/internal/domain"
	"github.com/suleymanmyradov/auth-core/internal/metrics"
)

// LoginRunner is implemented by LoginUseCase and its decorators.
type LoginRunner interface {
	Login(ctx context.Context, rateLimitKey, username, password string) (domain.MintedTokenPair, error)
}

// RefreshRunner is implemented by RefreshUseCase and its decorators.
type RefreshRunner interface {
	Refresh(ctx context.Context, rawRefreshToken string) (domain.MintedTokenPair, error)
}

// MeteredLoginUseCase wraps a LoginRunner with the metrics required of
// the login path, without altering its return values or errors.
type MeteredLoginUseCase struct {
	next LoginRunner
	m    *metrics.Service
}

// NewMeteredLoginUseCase wraps next with Prometheus counters.
func NewMeteredLoginUseCase(next LoginRunner, m *metrics.Service) *MeteredLoginUseCase {
	return &MeteredLoginUseCase{next: next, m: m}
}

func (d *MeteredLoginUseCase) Login(ctx context.Context, rateLimitKey, username, password string) (domain.MintedTokenPair, error) {
	pair, err := d.next.Login(ctx, rateLimitKey, username, password)
	if err == nil {
		d.m.LoginSuccess.Inc()
		return pair, nil
	}

	var retryAfter *domain.RetryAfterError
	switch {
	case errors.As(err, &retryAfter):
		d.m.BruteforceDetected.Inc()
		d.m.LoginFailure.WithLabelValues("rate_limited").Inc()
	case errors.Is(err, domain.ErrUserLocked):
		d.m.UserLocked.Inc()
		d.m.LoginFailure.WithLabelValues("locked").Inc()
	case errors.Is(err, domain.ErrUserDisabled):
		d.m.LoginFailure.WithLabelValues("disabled").Inc()
	case errors.Is(err, domain.ErrUserDeleted):
		d.m.LoginFailure.WithLabelValues("deleted").Inc()
	case errors.Is(err, domain.ErrInvalidCredentials):
		d.m.LoginFailure.WithLabelValues("invalid_credentials").Inc()
	default:
		d.m.LoginFailure.WithLabelValues("internal").Inc()
	}
	return pair, err
}

// AuditedLoginUseCase wraps a LoginRunner with best-effort audit
// publishing, without altering its return values or errors.
type AuditedLoginUseCase struct {
	next LoginRunner
	pub  *audit.Publisher
}

// NewAuditedLoginUseCase wraps next with audit event publishing.
func NewAuditedLoginUseCase(next LoginRunner, pub *audit.Publisher) *AuditedLoginUseCase {
	return &AuditedLoginUseCase{next: next, pub: pub}
}

func (d *AuditedLoginUseCase) Login(ctx context.Context, rateLimitKey, username, password string) (domain.MintedTokenPair, error) {
	pair, err := d.next.Login(ctx, rateLimitKey, username, password)
	if err == nil {
		d.pub.Publish(ctx, audit.Event{Type: audit.EventLoginSuccess, Username: username})
		return pair, nil
	}

	if errors.Is(err, domain.ErrUserLocked) {
		d.pub.Publish(ctx, audit.Event{Type: audit.EventUserLocked, Username: username})
	} else {
		d.pub.Publish(ctx, audit.Event{Type: audit.EventLoginFailure, Username: username})
	}
	return pair, err
}

// MeteredRefreshUseCase wraps a RefreshRunner with the metrics required
// of the refresh path.
type MeteredRefreshUseCase struct {
	next RefreshRunner
	m    *metrics.Service
}

// NewMeteredRefreshUseCase wraps next with Prometheus counters.
func NewMeteredRefreshUseCase(next RefreshRunner, m *metrics.Service) *MeteredRefreshUseCase {
	return &MeteredRefreshUseCase{next: next, m: m}
}

func (d *MeteredRefreshUseCase) Refresh(ctx context.Context, rawRefreshToken string) (domain.MintedTokenPair, error) {
	pair, err := d.next.Refresh(ctx, rawRefreshToken)
	if err == nil {
		d.m.TokenRefresh.Inc()
		return pair, nil
	}

	if errors.Is(err, domain.ErrRefreshReuse) {
		d.m.RefreshReused.Inc()
	} else {
		d.m.RotationFailed.Inc()
	}
	return pair, err
}

// AuditedRefreshUseCase wraps a RefreshRunner with best-effort audit
// publishing.
type AuditedRefreshUseCase struct {
	next RefreshRunner
	pub  *audit.Publisher
}

// NewAuditedRefreshUseCase wraps next with audit event publishing.
func NewAuditedRefreshUseCase(next RefreshRunner, pub *audit.Publisher) *AuditedRefreshUseCase {
	return &AuditedRefreshUseCase{next: next, pub: pub}
}

func (d *AuditedRefreshUseCase) Refresh(ctx context.Context, rawRefreshToken string) (domain.MintedTokenPair, error) {
	pair, err := d.next.Refresh(ctx, rawRefreshToken)
	if err == nil {
		d.pub.Publish(ctx, audit.Event{Type: audit.EventTokenRefresh})
		return pair, nil
	}

	if errors.Is(err, domain.ErrRefreshReuse) {
		d.pub.Publish(ctx, audit.Event{Type: audit.EventRefreshReused})
	}
	return pair, err
}
