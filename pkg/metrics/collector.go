// Package metrics exposes Prometheus instrumentation for the relay bot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_dispatches_total",
			Help: "Total number of dispatched updates labeled by route and status",
		},
		[]string{"route", "status"},
	)
	dispatchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_dispatch_duration_seconds",
			Help:    "Duration of update dispatching in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	continuationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_continuations_total",
			Help: "Continuation slot events labeled by event (set, consumed, cleared)",
		},
		[]string{"event"},
	)
	loginOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_outcomes_total",
			Help: "Login flow outcomes labeled by result",
		},
		[]string{"outcome"},
	)
	externalCallSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "network_call_duration_seconds",
			Help:    "Duration of external messaging network calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op", "status"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stored_sessions_active",
			Help: "Current number of active stored account sessions",
		},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
)

// RecordDispatch increments dispatch counters and records duration.
func RecordDispatch(route, status string, duration time.Duration) {
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	dispatchesTotal.WithLabelValues(route, status).Inc()
	dispatchDurationSeconds.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordContinuation tracks continuation slot lifecycle events.
func RecordContinuation(event string) {
	if event == "" {
		event = "unknown"
	}

	continuationsTotal.WithLabelValues(event).Inc()
}

// RecordLoginOutcome counts a login flow outcome such as success, need_password or failure.
func RecordLoginOutcome(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}

	loginOutcomesTotal.WithLabelValues(outcome).Inc()
}

// ObserveExternalCall records the duration of one external messaging network call.
func ObserveExternalCall(op, status string, duration time.Duration) {
	if op == "" {
		op = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	externalCallSeconds.WithLabelValues(op, status).Observe(duration.Seconds())
}

// SetActiveSessions updates the gauge for stored account sessions.
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}
