package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAuthMetrics(t *testing.T) {
	t.Parallel()

	m := NewAuthMetrics(prometheus.NewRegistry())
	m.RecordAuthentication(ResultSuccess)
	m.RecordAuthentication(ResultSuccess)
	m.RecordAuthentication(ResultInvalidToken)
	m.RecordRegistration(ResultSuccess)
	m.RecordRoleChange("agent")
	m.RecordLastLoginFailure()
	m.ObserveVerify(10 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authentications.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authentications.WithLabelValues(ResultInvalidToken)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.roleChanges.WithLabelValues("agent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lastLoginFailure))
}

func TestNilMetricsAreNoops(t *testing.T) {
	t.Parallel()

	var auth *AuthMetrics
	var http *HTTPMetrics
	assert.NotPanics(t, func() {
		auth.RecordAuthentication(ResultSuccess)
		auth.ObserveVerify(time.Second)
		auth.RecordRegistration(ResultError)
		auth.RecordRoleChange("admin")
		auth.RecordLastLoginFailure()
		http.RecordRequest("GET", "/auth/me", 200, time.Millisecond)
	})
}

func TestHTTPMetrics(t *testing.T) {
	t.Parallel()

	m := NewHTTPMetrics(prometheus.NewRegistry())
	m.RecordRequest("GET", "/auth/me", 200, time.Millisecond)
	m.RecordRequest("GET", "/auth/me", 200, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/auth/me", "200")))
}
