package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics tracks payment reconciliation results by outcome.
type ReconcileMetrics struct {
	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewReconcileMetrics registers the reconciliation metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_results",
		Help: "Reconciliation results by outcome.",
	}, []string{"result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconcile_duration_seconds",
		Help:    "Duration of payment reconciliation in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	reg.MustRegister(results, duration)
	return &ReconcileMetrics{
		results:  results,
		duration: duration,
	}
}

// IncResult increments the counter for the named reconciliation result.
func (m *ReconcileMetrics) IncResult(result string) {
	if m == nil || m.results == nil {
		return
	}
	m.results.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveDuration records how long a reconciliation took.
func (m *ReconcileMetrics) ObserveDuration(result string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(result)).Observe(duration.Seconds())
}
