package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(rescueOutcomesTotal, rescueDiagnosisLatencyMs)
}

var rescueOutcomesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rescue_outcomes_total",
		Help: "Rescue runs, labeled by strategy and outcome.",
	},
	[]string{"strategy", "outcome"}, // outcome: 'auto_fix', 'escalated', 'fallback'
)

var rescueDiagnosisLatencyMs = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "rescue_diagnosis_latency_ms",
		Help:    "Reasoning-service diagnosis call latency in milliseconds.",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	},
)

func IncRescueOutcome(strategy, outcome string) {
	rescueOutcomesTotal.WithLabelValues(norm(strategy), norm(outcome)).Inc()
}

func ObserveDiagnosisLatency(ms float64) {
	rescueDiagnosisLatencyMs.Observe(ms)
}
