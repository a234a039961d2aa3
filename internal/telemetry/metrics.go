package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "estateapi"

// Authentication results recorded by AuthMetrics.
const (
	ResultSuccess       = "success"
	ResultNoToken       = "no_token"
	ResultInvalidToken  = "invalid_token"
	ResultNotRegistered = "not_registered"
	ResultUpstream      = "upstream_unavailable"
	ResultError         = "error"
)

// AuthMetrics holds Prometheus instruments for authentication and principal
// administration. A nil *AuthMetrics records nothing.
type AuthMetrics struct {
	authentications  *prometheus.CounterVec
	verifyDuration   prometheus.Histogram
	registrations    *prometheus.CounterVec
	roleChanges      *prometheus.CounterVec
	lastLoginFailure prometheus.Counter
}

// NewAuthMetrics registers the authentication instruments with reg.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	factory := promauto.With(reg)

	return &AuthMetrics{
		authentications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "authentications_total",
			Help:      "Authentication attempts by result.",
		}, []string{"result"}),

		verifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "verify_duration_seconds",
			Help:      "Identity provider token verification latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),

		registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "registrations_total",
			Help:      "Registration attempts by result.",
		}, []string{"result"}),

		roleChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "role_changes_total",
			Help:      "Role assignments by new role.",
		}, []string{"role"}),

		lastLoginFailure: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "last_login_update_failures_total",
			Help:      "Best-effort lastLoginAt writes that failed.",
		}),
	}
}

// RecordAuthentication counts one authentication outcome.
func (m *AuthMetrics) RecordAuthentication(result string) {
	if m == nil {
		return
	}
	m.authentications.WithLabelValues(result).Inc()
}

// ObserveVerify records how long one verification took.
func (m *AuthMetrics) ObserveVerify(d time.Duration) {
	if m == nil {
		return
	}
	m.verifyDuration.Observe(d.Seconds())
}

// RecordRegistration counts one registration outcome.
func (m *AuthMetrics) RecordRegistration(result string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(result).Inc()
}

// RecordRoleChange counts one successful role assignment.
func (m *AuthMetrics) RecordRoleChange(role string) {
	if m == nil {
		return
	}
	m.roleChanges.WithLabelValues(role).Inc()
}

// RecordLastLoginFailure counts a dropped lastLoginAt write.
func (m *AuthMetrics) RecordLastLoginFailure() {
	if m == nil {
		return
	}
	m.lastLoginFailure.Inc()
}

// HTTPMetrics holds request instruments for the HTTP server.
// A nil *HTTPMetrics records nothing.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers the request instruments with reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)

	return &HTTPMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordRequest records one served request.
func (m *HTTPMetrics) RecordRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(d.Seconds())
}
