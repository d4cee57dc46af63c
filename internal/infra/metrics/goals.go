package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(goalVerdictsTotal, goalIssuesTotal)
}

var goalVerdictsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "goal_verdicts_total",
		Help: "Fulfillment verdicts, labeled by handler and verdict.",
	},
	[]string{"handler", "verdict"}, // 'fulfilled', 'unfulfilled'
)

var goalIssuesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "goal_issues_total",
		Help: "Unfulfilled-goal issues, labeled by issue type.",
	},
	[]string{"issue_type"},
)

func IncGoalVerdict(handler string, fulfilled bool) {
	v := "unfulfilled"
	if fulfilled {
		v = "fulfilled"
	}
	goalVerdictsTotal.WithLabelValues(norm(handler), v).Inc()
}

func IncGoalIssue(issueType string) {
	goalIssuesTotal.WithLabelValues(norm(issueType)).Inc()
}
