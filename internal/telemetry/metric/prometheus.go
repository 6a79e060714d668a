package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "chunkmeta"

// Checkpoint results used as label values.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
	ResultBusy   = "busy"
)

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Checkpoint metrics
	Checkpoints        *prometheus.CounterVec
	CheckpointDuration prometheus.Histogram
	CheckpointSize     prometheus.Gauge
	CheckpointSeq      prometheus.Gauge

	// Log metrics
	LogEntries      *prometheus.CounterVec
	LogAppendErrors prometheus.Counter
	LogCompacted    prometheus.Counter

	// Recovery metrics
	RecoveryDuration prometheus.Gauge
	ReplayedEntries  prometheus.Counter
}

// NewRegistry creates a registry with the process and Go runtime
// collectors and every application metric registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "checkpoint",
			Name:      "total",
			Help:      "Checkpoint attempts by result.",
		}, []string{"result"}),
		CheckpointDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "checkpoint",
			Name:      "duration_seconds",
			Help:      "Time to write and publish a checkpoint.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		CheckpointSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "checkpoint",
			Name:      "size_bytes",
			Help:      "Size of the latest published checkpoint.",
		}),
		CheckpointSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "checkpoint",
			Name:      "log_seq",
			Help:      "Log sequence number of the latest published checkpoint.",
		}),
		LogEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "log",
			Name:      "entries_total",
			Help:      "Log entries appended by op.",
		}, []string{"op"}),
		LogAppendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "log",
			Name:      "append_errors_total",
			Help:      "Failed log appends.",
		}),
		LogCompacted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "log",
			Name:      "segments_compacted_total",
			Help:      "Log segments removed after a checkpoint.",
		}),
		RecoveryDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "recovery",
			Name:      "duration_seconds",
			Help:      "Duration of the last startup recovery.",
		}),
		ReplayedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "recovery",
			Name:      "replayed_entries_total",
			Help:      "Log entries replayed during recovery.",
		}),
	}

	r.reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace}),
		collectors.NewGoCollector(),
		r.Checkpoints,
		r.CheckpointDuration,
		r.CheckpointSize,
		r.CheckpointSeq,
		r.LogEntries,
		r.LogAppendErrors,
		r.LogCompacted,
		r.RecoveryDuration,
		r.ReplayedEntries,
	)
	return r
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.reg.MustRegister(cs...)
}

// Gatherer returns the underlying gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
