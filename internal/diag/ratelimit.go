package diag

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimitedSink forwards diagnostics to next subject to one token bucket
// per check code, so a hot loop tripping one check cannot drown the others.
type RateLimitedSink struct {
	next  Sink
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[Check]*rate.Limiter
	dropped  map[Check]uint64
}

// NewRateLimitedSink allows perSecond reports per check with the given burst.
func NewRateLimitedSink(next Sink, perSecond float64, burst int) (*RateLimitedSink, error) {
	if perSecond <= 0 {
		return nil, ErrInvalidLimit
	}
	if burst <= 0 {
		return nil, ErrInvalidBurst
	}
	return &RateLimitedSink{
		next:     next,
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[Check]*rate.Limiter),
		dropped:  make(map[Check]uint64),
	}, nil
}

// Report implements Sink.
func (s *RateLimitedSink) Report(d Diagnostic) {
	s.mu.Lock()
	lim, ok := s.limiters[d.Check]
	if !ok {
		lim = rate.NewLimiter(s.limit, s.burst)
		s.limiters[d.Check] = lim
	}
	allowed := lim.Allow()
	if !allowed {
		s.dropped[d.Check]++
	}
	s.mu.Unlock()

	if !allowed {
		Dropped.WithLabelValues(string(d.Check)).Inc()
		return
	}
	s.next.Report(d)
}

// Dropped returns the number of suppressed diagnostics per check.
func (s *RateLimitedSink) Dropped() map[Check]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Check]uint64, len(s.dropped))
	for k, v := range s.dropped {
		out[k] = v
	}
	return out
}
