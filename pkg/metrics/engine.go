package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records session lock and inventory deduction outcomes.
type EngineMetrics struct {
	sessions      *prometheus.CounterVec
	deduction     *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	staleSessions prometheus.Gauge
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "table_session_outcomes",
		Help: "Table session acquisition outcomes by kind.",
	}, []string{"outcome"})
	deduction := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_deduction_events",
		Help: "Inventory deduction events by kind.",
	}, []string{"event"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_operation_duration_seconds",
		Help:    "Duration of engine operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	staleSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "table_sessions_stale",
		Help: "Active table sessions whose validity window has passed.",
	})
	reg.MustRegister(sessions, deduction, duration, staleSessions)
	return &EngineMetrics{
		sessions:      sessions,
		deduction:     deduction,
		duration:      duration,
		staleSessions: staleSessions,
	}
}

// SetStaleSessions records how many occupied tables carry an expired session.
func (m *EngineMetrics) SetStaleSessions(n int) {
	if m == nil || m.staleSessions == nil {
		return
	}
	m.staleSessions.Set(float64(n))
}

// IncSession increments the session outcome counter. Known outcomes are
// created, resumed, conflict, lock_busy and ended.
func (m *EngineMetrics) IncSession(outcome string) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDeduction increments the deduction event counter. Known events are
// traced, skipped and clamped.
func (m *EngineMetrics) IncDeduction(event string) {
	if m == nil || m.deduction == nil {
		return
	}
	m.deduction.WithLabelValues(normalizeLabel(event)).Inc()
}

// ObserveDuration records the duration of the named operation.
func (m *EngineMetrics) ObserveDuration(operation string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
