package metadata

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CacheEntries tracks the number of cached identifier records across every
// cache in the process.
// Labels: kind (method, field)
var CacheEntries = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "jnicheck",
		Subsystem: "metadata",
		Name:      "cache_entries",
		Help:      "Number of cached identifier records by kind",
	},
	[]string{"kind"},
)
