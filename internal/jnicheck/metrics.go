package jnicheck

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallsTotal counts intercepted calls per call site when call
	// statistics are enabled.
	// Labels: site
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jnicheck",
			Name:      "calls_total",
			Help:      "Total number of intercepted calls by call site",
		},
		[]string{"site"},
	)

	// ContextsLive tracks the number of live call contexts.
	ContextsLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jnicheck",
			Name:      "contexts",
			Help:      "Number of live call contexts",
		},
	)
)
