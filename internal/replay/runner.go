// Package replay drives the checker from scripted interop events.
//
// A script plays the role of the native-method dispatch layer: it names
// threads, frames, references and identifiers, and the runner turns each
// event into the predicate chain a proxy would run before forwarding the
// call to a simulated runtime. Protocol violations become diagnostics in
// the Result; a broken script is an error.
package replay

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/jnicheck/internal/config"
	"github.com/fyrsmithlabs/jnicheck/internal/diag"
	"github.com/fyrsmithlabs/jnicheck/internal/jnicheck"
	"github.com/fyrsmithlabs/jnicheck/internal/resources"
	"github.com/fyrsmithlabs/jnicheck/internal/vmsim"
)

// InstrumentationName is the OpenTelemetry scope of replay spans.
const InstrumentationName = "github.com/fyrsmithlabs/jnicheck/internal/replay"

// Result is the outcome of one script run.
type Result struct {
	Script      string              `json:"script"`
	RunID       string              `json:"run_id"`
	Events      int                 `json:"events"`
	Diagnostics []diag.Diagnostic   `json:"diagnostics"`
	Leaks       []resources.Leak    `json:"leaks"`
	Stats       []jnicheck.CallStat `json:"stats,omitempty"`
	Dumps       []Dump              `json:"dumps,omitempty"`
	Duration    time.Duration       `json:"duration"`

	// Checker and Recorder stay available for inspection after the run.
	Checker  *jnicheck.Checker `json:"-"`
	Recorder *diag.Recorder    `json:"-"`
}

// Clean reports whether the run produced no diagnostics.
func (r *Result) Clean() bool { return len(r.Diagnostics) == 0 }

// Dump is a checker snapshot taken by a dump event.
type Dump struct {
	Event    int               `json:"event"`
	Snapshot jnicheck.Snapshot `json:"snapshot"`
}

// Runner executes scripts. A Runner holds no per-run state and may run
// several scripts concurrently.
type Runner struct {
	cfg       config.CheckerConfig
	sink      diag.Sink
	zapLogger *zap.Logger
	logger    *Logger
	metrics   *jnicheck.Metrics
	tracer    trace.Tracer
	limit     int
}

// Option configures a Runner.
type Option func(*Runner)

// WithCheckerConfig sets the checker settings used for every run.
func WithCheckerConfig(cfg config.CheckerConfig) Option {
	return func(r *Runner) {
		r.cfg = cfg
	}
}

// WithSink adds a sink that receives diagnostics alongside the run's
// recorder.
func WithSink(sink diag.Sink) Option {
	return func(r *Runner) {
		r.sink = sink
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		r.zapLogger = logger
	}
}

// WithMetrics sets the checker's OpenTelemetry instruments.
func WithMetrics(m *jnicheck.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithTracer sets the tracer for run and audit spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithRecorderLimit bounds the diagnostics kept per run. 0 keeps all.
func WithRecorderLimit(n int) Option {
	return func(r *Runner) {
		r.limit = n
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		cfg:    config.Default().Checker,
		tracer: otel.Tracer(InstrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = NewLogger(r.zapLogger)
	return r
}

// Run executes script against a fresh simulated runtime and checker. The
// leak audit runs after the last event. Diagnostics never make Run fail;
// script errors and checker invariant failures do.
func (r *Runner) Run(ctx context.Context, script *Script) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "replay.run", trace.WithAttributes(
		attribute.String("script", script.Name),
		attribute.Int("events", len(script.Events)),
	))
	defer span.End()
	start := time.Now()

	fail := func(err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	universe, err := script.LoadUniverse()
	if err != nil {
		return fail(err)
	}
	rt := vmsim.New()
	if err := rt.Load(universe); err != nil {
		return fail(fmt.Errorf("loading universe: %w", err))
	}

	rec := diag.NewRecorder(r.limit)
	var sink diag.Sink = rec
	if r.sink != nil {
		sink = diag.FanOut{rec, r.sink}
	}

	x := newSession(rt, r.logger, r.cfg)
	checker, err := jnicheck.New(rt, sink,
		jnicheck.WithConfig(r.cfg),
		jnicheck.WithLogger(r.zapLogger),
		jnicheck.WithMetrics(r.metrics),
		jnicheck.WithTracer(r.tracer),
		jnicheck.WithInvariantHandler(x.onInvariant),
	)
	if err != nil {
		return fail(err)
	}
	if err := checker.Init(); err != nil {
		return fail(err)
	}
	x.c = checker
	span.SetAttributes(attribute.String("run.id", checker.RunID()))
	r.logger.RunStarted(script.Name, checker.RunID(), len(script.Events))

	for i := range script.Events {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		ev := &script.Events[i]
		x.index = i
		site, err := x.apply(ev)
		if x.failure != nil {
			err = fmt.Errorf("%w: %w", ErrInvariant, x.failure)
		}
		if err != nil {
			r.logger.EventFailed(i, ev, err)
			return fail(fmt.Errorf("event %d (%s, line %d): %w", i, ev.Op, ev.Line, err))
		}
		if r.cfg.Verbose {
			r.logger.EventApplied(i, ev, site)
		}
	}

	report, _ := checker.AuditLeaks(ctx)
	res := &Result{
		Script:      script.Name,
		RunID:       checker.RunID(),
		Events:      len(script.Events),
		Diagnostics: rec.All(),
		Leaks:       report.Leaks,
		Stats:       checker.Stats(),
		Dumps:       x.dumps,
		Duration:    time.Since(start),
		Checker:     checker,
		Recorder:    rec,
	}
	span.SetAttributes(
		attribute.Int("diagnostics", len(res.Diagnostics)),
		attribute.Int("leaks", len(res.Leaks)),
	)
	r.logger.RunFinished(res)
	return res, nil
}
