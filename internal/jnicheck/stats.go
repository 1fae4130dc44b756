package jnicheck

import (
	"sort"
	"sync"
)

// CallStat is the number of intercepted calls made through one site.
type CallStat struct {
	Site  string `json:"site"`
	Count uint64 `json:"count"`
}

type callStats struct {
	enabled bool
	mu      sync.Mutex
	counts  map[string]uint64
}

func newCallStats(enabled bool) *callStats {
	return &callStats{enabled: enabled, counts: make(map[string]uint64)}
}

// RecordCall counts one call through site when call counting is enabled.
func (c *Checker) RecordCall(site string) {
	if !c.stats.enabled {
		return
	}
	c.stats.mu.Lock()
	c.stats.counts[site]++
	c.stats.mu.Unlock()
	CallsTotal.WithLabelValues(site).Inc()
}

// Stats returns the call counts, busiest site first. It is empty when call
// counting is disabled.
func (c *Checker) Stats() []CallStat {
	c.stats.mu.Lock()
	out := make([]CallStat, 0, len(c.stats.counts))
	for site, n := range c.stats.counts {
		out = append(out, CallStat{Site: site, Count: n})
	}
	c.stats.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Site < out[j].Site
	})
	return out
}
