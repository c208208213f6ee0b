package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReconcilerMetrics exposes counters for the reconciliation jobs.
type ReconcilerMetrics struct {
	ticksTotal     *prometheus.CounterVec
	ticksSkipped   *prometheus.CounterVec
	ticksAbandoned *prometheus.CounterVec
	recordsTotal   *prometheus.CounterVec
}

func NewReconcilerMetrics(reg prometheus.Registerer) *ReconcilerMetrics {
	m := &ReconcilerMetrics{
		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebridge",
			Subsystem: "reconciler",
			Name:      "ticks_total",
			Help:      "Total job ticks started",
		}, []string{"job"}),
		ticksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebridge",
			Subsystem: "reconciler",
			Name:      "ticks_skipped_total",
			Help:      "Ticks skipped because the previous tick was still in flight",
		}, []string{"job"}),
		ticksAbandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebridge",
			Subsystem: "reconciler",
			Name:      "ticks_abandoned_total",
			Help:      "Ticks abandoned on a candidate-set query failure",
		}, []string{"job"}),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebridge",
			Subsystem: "reconciler",
			Name:      "records_total",
			Help:      "Records processed per job and outcome",
		}, []string{"job", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.ticksTotal, m.ticksSkipped, m.ticksAbandoned, m.recordsTotal)
	return m
}

func (m *ReconcilerMetrics) ObserveTick(job string) {
	if m == nil {
		return
	}
	m.ticksTotal.WithLabelValues(job).Inc()
}

func (m *ReconcilerMetrics) ObserveTickSkipped(job string) {
	if m == nil {
		return
	}
	m.ticksSkipped.WithLabelValues(job).Inc()
}

func (m *ReconcilerMetrics) ObserveTickAbandoned(job string) {
	if m == nil {
		return
	}
	m.ticksAbandoned.WithLabelValues(job).Inc()
}

// ObserveRecord counts one processed record. Outcome is one of "ok",
// "skipped" or "failed".
func (m *ReconcilerMetrics) ObserveRecord(job, outcome string) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(job, outcome).Inc()
}
