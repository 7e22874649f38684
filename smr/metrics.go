package smr

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts reclamation activity. A nil *Metrics records nothing.
type Metrics struct {
	retired   *prometheus.CounterVec
	disposed  *prometheus.CounterVec
	passes    *prometheus.CounterVec
	pending   *prometheus.GaugeVec
	forceWait *prometheus.HistogramVec
}

// NewMetrics registers the reclamation collectors with reg. A nil reg
// builds unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		retired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conctree",
			Subsystem: "smr",
			Name:      "retired_total",
			Help:      "Nodes handed to the reclamation scheme.",
		}, []string{"scheme"}),
		disposed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conctree",
			Subsystem: "smr",
			Name:      "disposed_total",
			Help:      "Nodes whose dispose callback has run.",
		}, []string{"scheme"}),
		passes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conctree",
			Subsystem: "smr",
			Name:      "collect_passes_total",
			Help:      "Reclamation passes over the retire queue.",
		}, []string{"scheme"}),
		pending: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "conctree",
			Subsystem: "smr",
			Name:      "pending",
			Help:      "Retired nodes waiting for disposal after the last pass.",
		}, []string{"scheme"}),
		forceWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "conctree",
			Subsystem: "smr",
			Name:      "force_dispose_seconds",
			Help:      "Time ForceDispose spent waiting for readers.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"scheme"}),
	}
}

func (m *Metrics) observeRetire(k Kind) {
	if m == nil {
		return
	}
	m.retired.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) observePass(k Kind, disposed, pending int) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(k.String()).Inc()
	m.disposed.WithLabelValues(k.String()).Add(float64(disposed))
	m.pending.WithLabelValues(k.String()).Set(float64(pending))
}

func (m *Metrics) observeForce(k Kind, seconds float64) {
	if m == nil {
		return
	}
	m.forceWait.WithLabelValues(k.String()).Observe(seconds)
}
