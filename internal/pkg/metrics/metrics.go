// Package metrics defines the orchestration core's Prometheus series:
// job lifecycle counters, per-chat queue depth, and the batching
// window's observed latency. Registered against the shared registry in
// internal/pkg/prometheus, scraped through the gateway's hertz server
// via hertz-contrib/monitor-prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coreprom "github.com/orchestrator/core/internal/pkg/prometheus"
)

var (
	// JobsStarted counts Job Manager Start() transitions, by worker type.
	JobsStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_jobs_started_total",
		Help: "Worker jobs transitioned to running, by worker type.",
	}, []string{"worker_type"})

	// JobsCompleted counts terminal transitions, by worker type and status.
	JobsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_jobs_completed_total",
		Help: "Worker jobs reaching a terminal status, by worker type and status.",
	}, []string{"worker_type", "status"})

	// ChatQueueDepth tracks outstanding FIFO tasks per chat lane.
	ChatQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orchestrator_chat_queue_depth",
		Help: "Outstanding tasks queued on a chat's FIFO lane.",
	}, []string{"chat"})

	// BatchWindowSeconds observes the elapsed time from a batch's first
	// arrival to the merged turn firing.
	BatchWindowSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orchestrator_batch_window_seconds",
		Help:    "Elapsed time from the first message in a batch to the merged turn firing.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	coreprom.GetRegistry().MustRegister(JobsStarted, JobsCompleted, ChatQueueDepth, BatchWindowSeconds)
}
