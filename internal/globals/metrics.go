package globals

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GlobalRefs tracks the number of registered global references across every
// registry in the process.
// Labels: kind (strong, weak)
var GlobalRefs = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "jnicheck",
		Subsystem: "globals",
		Name:      "refs",
		Help:      "Number of registered global references by kind",
	},
	[]string{"kind"},
)

func kindLabel(weak bool) string {
	if weak {
		return "weak"
	}
	return "strong"
}
