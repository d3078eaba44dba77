package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks case writes and storage contention
type Metrics struct {
	LockRetries      prometheus.Counter
	RetriesExhausted prometheus.Counter
	CasesCreated     prometheus.Counter
	CasesUpdated     prometheus.Counter
	StaleWrites      prometheus.Counter
	WriteDuration    prometheus.Histogram
}

// NewMetrics registers the case metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LockRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "court_case_lock_retries_total",
			Help: "Write attempts repeated after a lock acquisition failure",
		}),
		RetriesExhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "court_case_lock_retries_exhausted_total",
			Help: "Writes abandoned after every attempt failed to acquire a lock",
		}),
		CasesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "court_case_created_total",
			Help: "Court cases inserted",
		}),
		CasesUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "court_case_updated_total",
			Help: "Court cases reconciled with an existing record",
		}),
		StaleWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "court_case_stale_writes_total",
			Help: "Writes rejected by the optimistic version check",
		}),
		WriteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "court_case_write_duration_seconds",
			Help:    "Duration of case writes including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveWrite records the duration of a write.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveWrite(start time.Time) {
	m.WriteDuration.Observe(time.Since(start).Seconds())
}
