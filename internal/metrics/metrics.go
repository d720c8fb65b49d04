// Package metrics exposes the agent's Prometheus counters and gauges:
// successful reconnects, metadata batch flushes, frames dropped by a
// pipeline stage, frames processed, and async queue depths. A single
// registry is built once per process and served over HTTP by cmd/agent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric this agent emits.
type Registry struct {
	Reconnects      prometheus.Counter
	BatchFlushes    *prometheus.CounterVec
	FramesDropped   *prometheus.CounterVec
	FramesProcessed prometheus.Counter
	QueueDepth      *prometheus.GaugeVec

	reg *prometheus.Registry
}

// New builds a fresh registry with every metric registered, labeled by
// camera/device so a multi-camera deployment's dashboards can split by
// source.
func New(device string) *Registry {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"device": device}

	r := &Registry{
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ingest_agent_reconnects_total",
			Help:        "Number of times the frame source reconnected to its video stream.",
			ConstLabels: constLabels,
		}),
		BatchFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ingest_agent_metadata_batch_flushes_total",
			Help:        "Number of metadata batch flushes, labeled by trigger (size, interval, or close).",
			ConstLabels: constLabels,
		}, []string{"trigger"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ingest_agent_frames_dropped_total",
			Help:        "Number of frames a pipeline stage aborted, labeled by stage.",
			ConstLabels: constLabels,
		}, []string{"stage"}),
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ingest_agent_frames_processed_total",
			Help:        "Number of frames that ran through the full pipeline without being aborted.",
			ConstLabels: constLabels,
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "ingest_agent_queue_depth",
			Help:        "Current depth of an internal async queue, labeled by queue name.",
			ConstLabels: constLabels,
		}, []string{"queue"}),
		reg: reg,
	}

	reg.MustRegister(r.Reconnects, r.BatchFlushes, r.FramesDropped, r.FramesProcessed, r.QueueDepth)
	return r
}

// Handler returns the HTTP handler serving this registry's metrics in the
// Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
