package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors accumulate here from each metric family's init() so main wires
// the whole set with a single MustRegister call.
var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister installs the job, goal and rescue collectors with the default
// Prometheus registry. Calling it again is a no-op.
func MustRegister() {
	registerOnce.Do(func() {
		if len(pending) > 0 {
			prometheus.MustRegister(pending...)
		}
	})
}
