package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAllTenCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(reg, "authcore_test")

	s.LoginSuccess.Inc()
	s.LoginFailure.WithLabelValues("invalid_credentials").Inc()
	s.TokenRefresh.Inc()
	s.UserRegistration.Inc()
	s.BruteforceDetected.Inc()
	s.SessionRevoked.Inc()
	s.RotationFailed.Inc()
	s.UserLocked.Inc()
	s.RefreshReused.Inc()
	s.PasswordChange.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 10)
}

func TestLoginFailure_LabelsByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(reg, "authcore_test2")

	s.LoginFailure.WithLabelValues("invalid_credentials").Inc()
	s.LoginFailure.WithLabelValues("locked").Inc()
	s.LoginFailure.WithLabelValues("locked").Inc()

	var metric dto.Metric
	require.NoError(t, s.LoginFailure.WithLabelValues("locked").Write(&metric))
	assert.Equal(t, float64(2), metric.GetCounter().GetValue())
}

func TestNew_DoublyRegisteringPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg, "authcore_test3")
	assert.Panics(t, func() { New(reg, "authcore_test3") })
}
