package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks pipeline execution. A nil *Metrics is a valid no-op.
type Metrics struct {
	runsTotal       prometheus.Counter
	runsFailedTotal prometheus.Counter
	runDuration     prometheus.Histogram
	nodeDuration    *prometheus.HistogramVec
	nodeErrorsTotal *prometheus.CounterVec
	nodeSkipsTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers pipeline metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		runsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "beacon_pipeline_runs_total",
			Help: "Total pipeline runs.",
		}),
		runsFailedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "beacon_pipeline_runs_failed_total",
			Help: "Pipeline runs with at least one node error.",
		}),
		runDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_pipeline_run_duration_seconds",
			Help:    "End-to-end pipeline run duration.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		nodeDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "beacon_pipeline_node_duration_seconds",
			Help:    "Per-node execution duration.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"node_type"}),
		nodeErrorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_pipeline_node_errors_total",
			Help: "Node executions that recorded errors.",
		}, []string{"node_type"}),
		nodeSkipsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_pipeline_node_skips_total",
			Help: "Node executions that were skipped.",
		}, []string{"node_type"}),
	}
}

func (m *Metrics) observeNode(res *NodeResult) {
	if m == nil {
		return
	}
	m.nodeDuration.WithLabelValues(res.NodeType).Observe(float64(res.DurationMs) / 1000)
	if res.Failed() {
		m.nodeErrorsTotal.WithLabelValues(res.NodeType).Inc()
	}
	if res.Skipped {
		m.nodeSkipsTotal.WithLabelValues(res.NodeType).Inc()
	}
}

func (m *Metrics) observeRun(run *RunResult) {
	if m == nil {
		return
	}
	m.runsTotal.Inc()
	if run.Failed() {
		m.runsFailedTotal.Inc()
	}
	m.runDuration.Observe(float64(run.DurationMs) / 1000)
}
