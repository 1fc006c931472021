package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OutcomeOK labels successful operations in metrics
const OutcomeOK = "ok"

// Metrics records authentication outcomes. An empty Kind means success.
type Metrics interface {
	TokenIssued(tokenKind string)
	TokenVerified(kind Kind)
	LoginAttempted(kind Kind)
	AccountRegistered(kind Kind)
	TokenRefreshed(kind Kind)
}

type noopMetrics struct{}

func (noopMetrics) TokenIssued(string)     {}
func (noopMetrics) TokenVerified(Kind)     {}
func (noopMetrics) LoginAttempted(Kind)    {}
func (noopMetrics) AccountRegistered(Kind) {}
func (noopMetrics) TokenRefreshed(Kind)    {}

func normalizeMetrics(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

// PrometheusMetrics exposes outcome counters through a prometheus registry
type PrometheusMetrics struct {
	issued       *prometheus.CounterVec
	verified     *prometheus.CounterVec
	logins       *prometheus.CounterVec
	registration *prometheus.CounterVec
	refreshes    *prometheus.CounterVec
}

var _ Metrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates the auth counters and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusMetrics{
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "tokens_issued_total",
			Help:      "Signed tokens by token kind.",
		}, []string{"token"}),
		verified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "token_verifications_total",
			Help:      "Access token verifications by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		registration: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "registrations_total",
			Help:      "Account registrations by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "token_refreshes_total",
			Help:      "Refresh token exchanges by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{m.issued, m.verified, m.logins, m.registration, m.refreshes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *PrometheusMetrics) TokenIssued(tokenKind string) {
	m.issued.WithLabelValues(tokenKind).Inc()
}

func (m *PrometheusMetrics) TokenVerified(kind Kind) {
	m.verified.WithLabelValues(outcome(kind)).Inc()
}

func (m *PrometheusMetrics) LoginAttempted(kind Kind) {
	m.logins.WithLabelValues(outcome(kind)).Inc()
}

func (m *PrometheusMetrics) AccountRegistered(kind Kind) {
	m.registration.WithLabelValues(outcome(kind)).Inc()
}

func (m *PrometheusMetrics) TokenRefreshed(kind Kind) {
	m.refreshes.WithLabelValues(outcome(kind)).Inc()
}

func outcome(kind Kind) string {
	if kind == "" {
		return OutcomeOK
	}
	return string(kind)
}
