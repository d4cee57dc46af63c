package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		jobsProcessedTotal,
		jobRetriesTotal,
		jobDurationSeconds,
		queueDepth,
	)
}

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_processed_total",
		Help: "Total number of jobs processed, labeled by handler and final status.",
	},
	[]string{"handler", "status"},
)

var jobRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "job_retries_total",
		Help: "Total number of retry requeues per handler.",
	},
	[]string{"handler"},
)

var jobDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Handler invocation duration distribution.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{"handler"},
)

var queueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "job_queue_depth",
		Help: "Current length of the shared job queue.",
	},
)

func IncJob(handler, status string) {
	jobsProcessedTotal.WithLabelValues(norm(handler), norm(status)).Inc()
}

func IncRetry(handler string) {
	jobRetriesTotal.WithLabelValues(norm(handler)).Inc()
}

func ObserveJobDuration(handler string, seconds float64) {
	jobDurationSeconds.WithLabelValues(norm(handler)).Observe(seconds)
}

func SetQueueDepth(n int64) {
	queueDepth.Set(float64(n))
}

func norm(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "unknown"
	}
	return s
}
