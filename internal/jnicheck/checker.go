package jnicheck

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/jnicheck/internal/config"
	"github.com/fyrsmithlabs/jnicheck/internal/diag"
	"github.com/fyrsmithlabs/jnicheck/internal/globals"
	"github.com/fyrsmithlabs/jnicheck/internal/metadata"
	"github.com/fyrsmithlabs/jnicheck/internal/resources"
	"github.com/fyrsmithlabs/jnicheck/internal/vm"
)

// Checker is the process-wide validation engine. All methods are safe for
// concurrent use; each Context must only be used from its own thread.
type Checker struct {
	rt        vm.Runtime
	sink      diag.Sink
	cfg       config.CheckerConfig
	cache     *metadata.Cache
	globals   *globals.Registry
	resources *resources.Tracker

	logger      *Logger
	zapLogger   *zap.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	runID       string
	onInvariant InvariantHandler
	now         func() time.Time

	classes     builtinClasses
	initialized atomic.Bool

	phase    atomic.Int32
	contexts *contextRegistry
	stats    *callStats
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Checker) {
		c.zapLogger = logger
	}
}

// WithMetrics sets the OpenTelemetry instruments.
func WithMetrics(m *Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// WithTracer sets the tracer used for leak audit spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Checker) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithConfig applies checker settings. Zero values keep the defaults.
func WithConfig(cfg config.CheckerConfig) Option {
	return func(c *Checker) {
		c.cfg = cfg
	}
}

// WithRunID overrides the generated run id stamped on every diagnostic.
func WithRunID(id string) Option {
	return func(c *Checker) {
		if id != "" {
			c.runID = id
		}
	}
}

// WithInvariantHandler replaces the default log-and-panic handler.
func WithInvariantHandler(h InvariantHandler) Option {
	return func(c *Checker) {
		c.onInvariant = h
	}
}

// WithClock sets the time source for diagnostic timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a checker over rt reporting to sink. Call Init once the
// runtime can resolve core library classes.
func New(rt vm.Runtime, sink diag.Sink, opts ...Option) (*Checker, error) {
	if rt == nil {
		return nil, fmt.Errorf("jnicheck: runtime is required")
	}
	if sink == nil {
		sink = diag.Discard
	}
	c := &Checker{
		rt:       rt,
		sink:     sink,
		cfg:      config.Default().Checker,
		tracer:   Tracer(),
		runID:    uuid.NewString(),
		now:      time.Now,
		contexts: newContextRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.applyDefaults()

	c.logger = NewLogger(c.zapLogger)
	if c.onInvariant == nil {
		c.onInvariant = c.defaultInvariantHandler
	}

	tracker, err := resources.NewTracker(c.cfg.ReleasedHistory)
	if err != nil {
		return nil, fmt.Errorf("jnicheck: resource tracker: %w", err)
	}
	c.resources = tracker
	c.globals = globals.NewRegistry()
	c.cache = metadata.NewCache(rt,
		metadata.WithLimits(c.cfg.MaxMethods, c.cfg.MaxFields),
		metadata.WithMaxDepth(c.cfg.MaxHierarchyDepth),
		metadata.WithLogger(c.zapLogger),
	)
	c.stats = newCallStats(c.cfg.MethodCount)
	c.phase.Store(int32(vm.PhaseBootstrap))
	return c, nil
}

func (c *Checker) applyDefaults() {
	if c.cfg.MaxHierarchyDepth <= 0 {
		c.cfg.MaxHierarchyDepth = vm.DefaultMaxHierarchyDepth
	}
	if c.cfg.ReleasedHistory <= 0 {
		c.cfg.ReleasedHistory = resources.DefaultReleasedHistory
	}
	if c.cfg.DefaultFrameCapacity <= 0 {
		c.cfg.DefaultFrameCapacity = config.DefaultFrameCapacity
	}
	if c.cfg.TraceThreads == "" {
		c.cfg.TraceThreads = "*"
	}
}

func (c *Checker) defaultInvariantHandler(e *InvariantError) {
	c.logger.InvariantFailure(e)
	panic(e)
}

// invariant hands an internal failure to the handler. Callers treat the
// check as passed when the handler returns.
func (c *Checker) invariant(s *Context, op string, err error) {
	e := &InvariantError{Op: op, Err: err}
	if s != nil {
		e.ContextID = s.ID
	}
	c.onInvariant(e)
}

// RunID identifies this checker instance in diagnostics and logs.
func (c *Checker) RunID() string { return c.runID }

// Config returns the effective checker settings.
func (c *Checker) Config() config.CheckerConfig { return c.cfg }

// Runtime returns the runtime the checker queries.
func (c *Checker) Runtime() vm.Runtime { return c.rt }

// Cache returns the identifier metadata cache.
func (c *Checker) Cache() *metadata.Cache { return c.cache }

// Globals returns the global reference registry.
func (c *Checker) Globals() *globals.Registry { return c.globals }

// Phase returns the phase new contexts start in.
func (c *Checker) Phase() vm.Phase { return vm.Phase(c.phase.Load()) }

// Transition moves every live context, and every context started later, to
// phase.
func (c *Checker) Transition(phase vm.Phase) {
	from := vm.Phase(c.phase.Swap(int32(phase)))
	n := c.contexts.each(func(s *Context) { s.SetPhase(phase) })
	c.logger.PhaseTransition(from, phase, n)
}

// AddGlobal records ref as a strong or weak global reference.
func (c *Checker) AddGlobal(ref vm.Ref, weak bool) {
	if ref.IsNull() {
		return
	}
	c.globals.Add(ref, weak)
}

// DeleteGlobal forgets a global reference.
func (c *Checker) DeleteGlobal(ref vm.Ref, weak bool) {
	c.globals.Remove(ref, weak)
}

// RegisterMethod caches metadata for a method identifier on first sight.
func (c *Checker) RegisterMethod(id vm.MethodID, isStatic bool, class vm.Ref, name, descriptor string) (*metadata.MethodRecord, error) {
	rec, err := c.cache.RegisterMethod(id, isStatic, class, name, descriptor)
	if err != nil {
		c.logger.RegistrationFailed("method", name, descriptor, err)
		return nil, err
	}
	return rec, nil
}

// RegisterField caches metadata for a field identifier looked up through
// class.
func (c *Checker) RegisterField(class vm.Ref, id vm.FieldID, isStatic bool, name, descriptor string) (*metadata.FieldRecord, error) {
	rec, err := c.cache.RegisterField(class, id, isStatic, name, descriptor)
	if err != nil {
		c.logger.RegistrationFailed("field", name, descriptor, err)
		return nil, err
	}
	return rec, nil
}

// report delivers one diagnostic and returns false so predicates can end
// with "return c.report(...)".
func (c *Checker) report(s *Context, check diag.Check, site string, index int, handle uintptr, format string, args ...any) bool {
	d := diag.Diagnostic{
		Kind:    diag.KindProtocol,
		Check:   check,
		Site:    site,
		Index:   index,
		Handle:  handle,
		Message: fmt.Sprintf(format, args...),
		Time:    c.now(),
		RunID:   c.runID,
	}
	if s != nil {
		d.ContextID = s.ID
		d.Thread = s.Name
		d.Env = s.Env
	}
	c.metrics.RecordFailure(context.Background(), string(check))
	c.sink.Report(d)
	return false
}

// skip reports whether per-call checks are off for s.
func (c *Checker) skip(s *Context) bool {
	return s.Phase() == vm.PhaseDead
}

// Snapshot is a point-in-time summary of checker state.
type Snapshot struct {
	RunID      string        `json:"run_id"`
	Phase      vm.Phase      `json:"phase"`
	Contexts   []ContextInfo `json:"contexts"`
	Methods    int           `json:"methods"`
	Fields     int           `json:"fields"`
	GlobalRefs int           `json:"global_refs"`
	WeakRefs   int           `json:"weak_refs"`
	Resources  int           `json:"resources"`
	Calls      []CallStat    `json:"calls,omitempty"`
}

// Snapshot summarizes the checker. Context details are limited to fields
// that are safe to read from another thread.
func (c *Checker) Snapshot() Snapshot {
	methods, fields := c.cache.Len()
	return Snapshot{
		RunID:      c.runID,
		Phase:      c.Phase(),
		Contexts:   c.contexts.infos(),
		Methods:    methods,
		Fields:     fields,
		GlobalRefs: c.globals.Len(false),
		WeakRefs:   c.globals.Len(true),
		Resources:  c.resources.Len(),
		Calls:      c.Stats(),
	}
}
