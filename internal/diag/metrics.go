package diag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Diagnostics counts diagnostics delivered through an instrumented sink.
	// Labels: check
	Diagnostics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jnicheck",
			Name:      "diagnostics_total",
			Help:      "Total number of protocol diagnostics by check",
		},
		[]string{"check"},
	)

	// Dropped counts diagnostics suppressed by rate limiting.
	// Labels: check
	Dropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jnicheck",
			Subsystem: "diagnostics",
			Name:      "dropped_total",
			Help:      "Total number of diagnostics dropped by the rate limiter",
		},
		[]string{"check"},
	)

	// PublishFailures counts diagnostics the NATS sink failed to publish.
	PublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jnicheck",
			Subsystem: "diagnostics",
			Name:      "publish_failures_total",
			Help:      "Total number of diagnostics that could not be published to NATS",
		},
	)
)
