package lifecycle

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the lifecycle engine.
type Metrics struct {
	PayloadsTotal     *prometheus.CounterVec
	AlertsCreated     prometheus.Counter
	AlertsUpdated     prometheus.Counter
	AlertsResolved    prometheus.Counter
	AlertsSkipped     prometheus.Counter
	IncidentsCreated  prometheus.Counter
	IncidentsResolved prometheus.Counter
	ProcessErrors     prometheus.Counter
	BatchSize         prometheus.Histogram
}

// NewMetrics registers and returns lifecycle metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PayloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_lifecycle_payloads_total",
			Help: "Total processed payloads by source and outcome.",
		}, []string{"source", "outcome"}),
		AlertsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_lifecycle_alerts_created_total",
			Help: "Total alert rows created.",
		}),
		AlertsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_lifecycle_alerts_updated_total",
			Help: "Total alert row updates.",
		}),
		AlertsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_lifecycle_alerts_resolved_total",
			Help: "Total alerts transitioned to resolved.",
		}),
		AlertsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_lifecycle_alerts_skipped_total",
			Help: "Total alerts skipped (resolved status with no existing row).",
		}),
		IncidentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_lifecycle_incidents_created_total",
			Help: "Total incidents auto-created.",
		}),
		IncidentsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_lifecycle_incidents_resolved_total",
			Help: "Total incidents auto-resolved by the sweep.",
		}),
		ProcessErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_lifecycle_process_errors_total",
			Help: "Total per-alert processing failures.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_lifecycle_batch_size",
			Help:    "Alerts per processed payload.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1 .. 128
		}),
	}

	reg.MustRegister(
		m.PayloadsTotal,
		m.AlertsCreated,
		m.AlertsUpdated,
		m.AlertsResolved,
		m.AlertsSkipped,
		m.IncidentsCreated,
		m.IncidentsResolved,
		m.ProcessErrors,
		m.BatchSize,
	)
	return m
}

// Observe records the counters for one completed batch.
func (m *Metrics) Observe(s *Summary) {
	outcome := "ok"
	if s.Failed() {
		outcome = "error"
	}
	m.PayloadsTotal.WithLabelValues(s.Source, outcome).Inc()
	m.AlertsCreated.Add(float64(s.Created))
	m.AlertsUpdated.Add(float64(s.Updated))
	m.AlertsResolved.Add(float64(s.Resolved))
	m.AlertsSkipped.Add(float64(s.Skipped))
	m.IncidentsCreated.Add(float64(s.Incidents))
	m.BatchSize.Observe(float64(s.Total))
}
