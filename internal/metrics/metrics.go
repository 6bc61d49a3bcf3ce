// Package metrics provides Prometheus instrumentation for the iteration
// controller, adapted from the teacher's graph execution metrics to this
// system's roles and stages instead of node/edge execution.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes counters and histograms for one run, namespaced
// "text2sql_". Construct it with New: a nil *Metrics is not valid and its
// methods panic on it. After Disable, every Record* method is a no-op until
// Enable is called.
type Metrics struct {
	iterationsTotal  *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	judgeScore       *prometheus.HistogramVec
	judgeRetries     *prometheus.CounterVec
	sqlWriterFailure *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// New registers every metric against registry (use prometheus.DefaultRegisterer
// for the global registry, or a fresh prometheus.NewRegistry() for test
// isolation).
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		enabled: true,

		iterationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "text2sql",
			Name:      "iterations_total",
			Help:      "Runs finished, labeled by run_id and outcome (stopped, exhausted, fatal)",
		}, []string{"run_id", "outcome"}),

		providerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "text2sql",
			Name:      "provider_call_latency_ms",
			Help:      "Provider call duration in milliseconds, labeled by role and provider name",
			Buckets:   []float64{50, 100, 500, 1000, 2000, 5000, 10000, 30000},
		}, []string{"run_id", "role", "provider"}),

		judgeScore: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "text2sql",
			Name:      "judge_score",
			Help:      "Distribution of judge scores, labeled by run_id and decision",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 0.8, 0.9, 0.95, 1.0},
		}, []string{"run_id", "decision"}),

		judgeRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "text2sql",
			Name:      "judge_retries_total",
			Help:      "Judge-call retries, labeled by run_id and reason (malformed, invariant_violation, provider_error)",
		}, []string{"run_id", "reason"}),

		sqlWriterFailure: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "text2sql",
			Name:      "sql_writer_failures_total",
			Help:      "SQL-writer attempts that produced no usable SQL, labeled by run_id",
		}, []string{"run_id"}),
	}
}

func (m *Metrics) RecordIteration(runID, outcome string) {
	if !m.isEnabled() {
		return
	}
	m.iterationsTotal.WithLabelValues(runID, outcome).Inc()
}

func (m *Metrics) RecordProviderLatency(runID, role, providerName string, d time.Duration) {
	if !m.isEnabled() {
		return
	}
	m.providerLatency.WithLabelValues(runID, role, providerName).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) RecordJudgeScore(runID, decision string, score float64) {
	if !m.isEnabled() {
		return
	}
	m.judgeScore.WithLabelValues(runID, decision).Observe(score)
}

func (m *Metrics) RecordJudgeRetry(runID, reason string) {
	if !m.isEnabled() {
		return
	}
	m.judgeRetries.WithLabelValues(runID, reason).Inc()
}

func (m *Metrics) RecordSQLWriterFailure(runID string) {
	if !m.isEnabled() {
		return
	}
	m.sqlWriterFailure.WithLabelValues(runID).Inc()
}

func (m *Metrics) isEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Disable stops recording new observations (useful in tests that don't
// want to pollute a shared registry's counters).
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enable re-enables recording after Disable.
func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
