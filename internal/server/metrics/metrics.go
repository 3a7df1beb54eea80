// Package metrics provides Prometheus counters for authentication and rate
// limiting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	authAttemptsTotal        *prometheus.CounterVec
	authFailuresTotal        *prometheus.CounterVec
	rateLimitRejectionsTotal *prometheus.CounterVec
	tokensIssuedTotal        prometheus.Counter
}

// New creates the counters and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		authAttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_auth_attempts_total",
			Help: "Total authentication attempts by result",
		}, []string{"result"}),

		authFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_auth_failures_total",
			Help: "Total authentication failures by reason",
		}, []string{"reason"}),

		rateLimitRejectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_ratelimit_rejections_total",
			Help: "Total requests rejected by the rate limiter",
		}, []string{"class"}),

		tokensIssuedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "bookstore_tokens_issued_total",
			Help: "Total bearer tokens issued",
		}),
	}
}

func (m *Metrics) RecordAuthSuccess() {
	if m == nil {
		return
	}
	m.authAttemptsTotal.WithLabelValues("success").Inc()
}

func (m *Metrics) RecordAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.authAttemptsTotal.WithLabelValues("failure").Inc()
	m.authFailuresTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordRateLimitRejection(class string) {
	if m == nil {
		return
	}
	m.rateLimitRejectionsTotal.WithLabelValues(class).Inc()
}

func (m *Metrics) RecordTokenIssued() {
	if m == nil {
		return
	}
	m.tokensIssuedTotal.Inc()
}
