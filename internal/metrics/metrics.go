// Package metrics registers the Prometheus collectors shared across the
// gateway, converter, and session registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus collectors for counselsim.
//
// All recording methods are safe on a nil receiver so components can carry
// an optional *Metrics without guarding every call.
type Metrics struct {
	// Gateway traffic
	GatewayRequestsTotal  *prometheus.CounterVec
	GatewayRequestSeconds *prometheus.HistogramVec

	// Conversion pipeline
	ConversionAttemptsTotal prometheus.Counter
	ConversionsTotal        *prometheus.CounterVec

	// Dialogue sessions
	SessionTurnsTotal prometheus.Counter
	ActiveSessions    prometheus.Gauge
}

// New creates and registers the counselsim Prometheus metrics.
//
// Registration happens once per process; repeated calls return the same
// instance, preventing duplicate-collector panics.
//
// Metrics:
//   - counselsim_gateway_requests_total{provider,outcome} - completion calls
//   - counselsim_gateway_request_seconds{provider} - completion latency
//   - counselsim_conversion_attempts_total - individual conversion attempts
//   - counselsim_conversions_total{outcome} - finished conversions
//   - counselsim_session_turns_total - dialogue turns stepped
//   - counselsim_active_sessions - sessions currently registered
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			GatewayRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "counselsim_gateway_requests_total",
					Help: "Total number of language model completion calls",
				},
				[]string{"provider", "outcome"}, // outcome: "ok" or "error"
			),

			GatewayRequestSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "counselsim_gateway_request_seconds",
					Help:    "Duration of language model completion calls in seconds",
					Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
				},
				[]string{"provider"},
			),

			ConversionAttemptsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "counselsim_conversion_attempts_total",
					Help: "Total number of conversion attempts including repairs",
				},
			),

			ConversionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "counselsim_conversions_total",
					Help: "Total number of finished conversions",
				},
				[]string{"outcome"}, // "ok" or "failed"
			),

			SessionTurnsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "counselsim_session_turns_total",
					Help: "Total number of dialogue turns stepped across sessions",
				},
			),

			ActiveSessions: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "counselsim_active_sessions",
					Help: "Number of sessions currently held by the registry",
				},
			),
		}
	})

	return globalMetrics
}

// RecordGatewayRequest records one completion call with its outcome and
// duration.
func (m *Metrics) RecordGatewayRequest(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.GatewayRequestsTotal.WithLabelValues(provider, outcome).Inc()
	m.GatewayRequestSeconds.WithLabelValues(provider).Observe(seconds)
}

// RecordConversionAttempt records one conversion attempt (initial or repair).
func (m *Metrics) RecordConversionAttempt() {
	if m == nil {
		return
	}
	m.ConversionAttemptsTotal.Inc()
}

// RecordConversion records a finished conversion with outcome "ok" or
// "failed".
func (m *Metrics) RecordConversion(outcome string) {
	if m == nil {
		return
	}
	m.ConversionsTotal.WithLabelValues(outcome).Inc()
}

// RecordSessionTurn records one stepped dialogue turn.
func (m *Metrics) RecordSessionTurn() {
	if m == nil {
		return
	}
	m.SessionTurnsTotal.Inc()
}

// SetActiveSessions updates the active session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
