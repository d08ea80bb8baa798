// Package metrics exposes the Prometheus counters required of every
// authentication core deployment.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Service records the ten named counters. All are labeled only where
// the spec requires it; everything else stays a bare counter to keep
// cardinality bounded.
type Service struct {
	LoginSuccess      prometheus.Counter
	LoginFailure      *prometheus.CounterVec
	TokenRefresh      prometheus.Counter
	UserRegistration  prometheus.Counter
	BruteforceDetected prometheus.Counter
	SessionRevoked    prometheus.Counter
	RotationFailed    prometheus.Counter
	UserLocked        prometheus.Counter
	RefreshReused     prometheus.Counter
	PasswordChange    prometheus.Counter
}

// New registers every metric against reg and returns the populated
// Service.
func New(reg prometheus.Registerer, namespace string) *Service {
	s := &Service{
		LoginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "login_success_total", Help: "Successful logins.",
		}),
		LoginFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "login_failure_total", Help: "Failed logins by reason.",
		}, []string{"reason"}),
		TokenRefresh: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "token_refresh_total", Help: "Successful refresh rotations.",
		}),
		UserRegistration: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "user_registration_total", Help: "New accounts provisioned.",
		}),
		BruteforceDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bruteforce_detected_total", Help: "Login attempts blocked by the attempt policy.",
		}),
		SessionRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "session_revoked_total", Help: "Sessions explicitly revoked.",
		}),
		RotationFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rotation_failed_total", Help: "Refresh rotations that errored before completing.",
		}),
		UserLocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "user_locked_total", Help: "Logins rejected for a locked account.",
		}),
		RefreshReused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "refresh_reused_total", Help: "Refresh token reuse detected; family revoked.",
		}),
		PasswordChange: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "password_change_total", Help: "Passwords changed.",
		}),
	}

	reg.MustRegister(
		s.LoginSuccess, s.LoginFailure, s.TokenRefresh, s.UserRegistration,
		s.BruteforceDetected, s.SessionRevoked, s.RotationFailed, s.UserLocked,
		s.RefreshReused, s.PasswordChange,
	)
	return s
}
