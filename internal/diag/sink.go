package diag

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/jnicheck/internal/logging"
)

// Sink receives diagnostics. Implementations must be safe for concurrent
// use; the checker reports from whichever thread made the failing call.
type Sink interface {
	Report(d Diagnostic)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Diagnostic)

// Report implements Sink.
func (f SinkFunc) Report(d Diagnostic) { f(d) }

// Discard drops every diagnostic.
var Discard Sink = SinkFunc(func(Diagnostic) {})

// FanOut forwards each diagnostic to every sink in order.
type FanOut []Sink

// Report implements Sink.
func (f FanOut) Report(d Diagnostic) {
	for _, s := range f {
		if s != nil {
			s.Report(d)
		}
	}
}

// LogSink writes diagnostics as warn-level log entries.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink returns a sink writing through logger. A nil logger discards.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogSink{logger: logger.Named("diag")}
}

// Report implements Sink.
func (s *LogSink) Report(d Diagnostic) {
	ctx := logging.WithContextID(context.Background(), d.ContextID)
	if d.RunID != "" {
		ctx = logging.WithRunID(ctx, d.RunID)
	}
	fields := []zap.Field{
		zap.String("check", string(d.Check)),
		zap.Stringer("env", d.Env),
	}
	if d.Thread != "" {
		fields = append(fields, zap.String("thread", d.Thread))
	}
	if d.Site != "" {
		fields = append(fields, zap.String("site", d.Site))
	}
	if d.Index > 0 {
		fields = append(fields, zap.Int("index", d.Index))
	}
	if d.Handle != 0 {
		fields = append(fields, zap.Uintptr("handle", d.Handle))
	}
	s.logger.Warn(ctx, d.Message, fields...)
}

// Instrument counts every diagnostic in the Diagnostics metric before
// forwarding it to next.
func Instrument(next Sink) Sink {
	return SinkFunc(func(d Diagnostic) {
		Diagnostics.WithLabelValues(string(d.Check)).Inc()
		if next != nil {
			next.Report(d)
		}
	})
}

// Filter selects recorded diagnostics. Zero fields match everything.
type Filter struct {
	Check     Check
	ContextID uint64
	Site      string
}

func (f Filter) match(d Diagnostic) bool {
	if f.Check != "" && d.Check != f.Check {
		return false
	}
	if f.ContextID != 0 && d.ContextID != f.ContextID {
		return false
	}
	if f.Site != "" && d.Site != f.Site {
		return false
	}
	return true
}

// Recorder keeps diagnostics in memory, oldest first.
type Recorder struct {
	mu    sync.RWMutex
	limit int
	diags []Diagnostic
	total int
}

// NewRecorder returns a recorder keeping at most limit diagnostics; older
// entries are evicted first. limit <= 0 keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Report implements Sink.
func (r *Recorder) Report(d Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	r.diags = append(r.diags, d)
	if r.limit > 0 && len(r.diags) > r.limit {
		r.diags = append(r.diags[:0], r.diags[len(r.diags)-r.limit:]...)
	}
}

// All returns a copy of every retained diagnostic.
func (r *Recorder) All() []Diagnostic {
	return r.Filter(Filter{})
}

// Filter returns the retained diagnostics matching f.
func (r *Recorder) Filter(f Filter) []Diagnostic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Diagnostic, 0, len(r.diags))
	for _, d := range r.diags {
		if f.match(d) {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the number of retained diagnostics with the given check.
func (r *Recorder) Count(check Check) int {
	return len(r.Filter(Filter{Check: check}))
}

// Len returns the number of retained diagnostics.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.diags)
}

// Total returns the number of diagnostics ever reported, evicted included.
func (r *Recorder) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Reset discards every retained diagnostic.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = nil
	r.total = 0
}
