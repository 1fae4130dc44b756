package resources

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LiveResources tracks the number of acquired, unreleased resources
	// across every tracker in the process.
	LiveResources = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jnicheck",
			Subsystem: "resources",
			Name:      "live",
			Help:      "Number of runtime resources acquired and not yet released",
		},
	)

	// Releases counts release attempts by outcome.
	// Labels: outcome (released, double_free, untracked)
	Releases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jnicheck",
			Subsystem: "resources",
			Name:      "releases_total",
			Help:      "Total number of resource releases by outcome",
		},
		[]string{"outcome"},
	)
)
