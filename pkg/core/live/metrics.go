package live

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metrics for interview sessions.
// All Record methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive     prometheus.Gauge
	SessionDuration    prometheus.Histogram
	SubmissionsTotal   *prometheus.CounterVec
	EndAttemptsTotal   *prometheus.CounterVec
	TurnsSpokenTotal   prometheus.Counter
	DegradationsTotal  *prometheus.CounterVec
	NotificationsTotal prometheus.Counter
}

// NewMetrics creates a Metrics instance with its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mockview"
	}

	registry := prometheus.NewRegistry()

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of mounted interview sessions",
		},
	)

	sessionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_elapsed_seconds",
			Help:      "Elapsed time recorded when a session ends",
			Buckets:   []float64{60, 300, 600, 900, 1200, 1800, 2700, 3600},
		},
	)

	submissionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Answer submissions by outcome",
		},
		[]string{"status"},
	)

	endAttemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "end_attempts_total",
			Help:      "End sequence executions by trigger and outcome",
		},
		[]string{"trigger", "status"},
	)

	turnsSpokenTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_spoken_total",
			Help:      "Interviewer turns handed to speech synthesis",
		},
	)

	degradationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_degradations_total",
			Help:      "Device or capability failures that degraded the session",
		},
		[]string{"device"},
	)

	notificationsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "User-facing error notifications",
		},
	)

	registry.MustRegister(
		sessionsActive,
		sessionDuration,
		submissionsTotal,
		endAttemptsTotal,
		turnsSpokenTotal,
		degradationsTotal,
		notificationsTotal,
	)

	return &Metrics{
		registry:           registry,
		SessionsActive:     sessionsActive,
		SessionDuration:    sessionDuration,
		SubmissionsTotal:   submissionsTotal,
		EndAttemptsTotal:   endAttemptsTotal,
		TurnsSpokenTotal:   turnsSpokenTotal,
		DegradationsTotal:  degradationsTotal,
		NotificationsTotal: notificationsTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordSessionStart records a session mounting.
func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

// RecordSessionClose records a session unmounting.
func (m *Metrics) RecordSessionClose() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// RecordSubmission records the outcome of one answer submission.
func (m *Metrics) RecordSubmission(status string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(status).Inc()
}

// RecordEndAttempt records one end sequence run.
func (m *Metrics) RecordEndAttempt(trigger Trigger, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.EndAttemptsTotal.WithLabelValues(string(trigger), status).Inc()
	if status == "ok" {
		m.SessionDuration.Observe(elapsed.Seconds())
	}
}

// RecordTurnSpoken records an interviewer turn sent to synthesis.
func (m *Metrics) RecordTurnSpoken() {
	if m == nil {
		return
	}
	m.TurnsSpokenTotal.Inc()
}

// RecordDegradation records a device falling back to its placeholder.
func (m *Metrics) RecordDegradation(device string) {
	if m == nil {
		return
	}
	m.DegradationsTotal.WithLabelValues(device).Inc()
}

// RecordNotification records a user-facing error.
func (m *Metrics) RecordNotification() {
	if m == nil {
		return
	}
	m.NotificationsTotal.Inc()
}
