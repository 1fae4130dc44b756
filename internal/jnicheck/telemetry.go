package jnicheck

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// InstrumentationName is the name used for OTEL instrumentation.
	InstrumentationName = "github.com/fyrsmithlabs/jnicheck/internal/jnicheck"
)

// Metrics provides OpenTelemetry metrics for the checker.
type Metrics struct {
	// Counters
	predicateFailures metric.Int64Counter
	framesEntered     metric.Int64Counter

	// Gauges (using UpDownCounter for gauge semantics)
	contextsActive metric.Int64UpDownCounter

	// Histograms
	frameDepth metric.Int64Histogram

	// initialized tracks if metrics were successfully initialized
	initialized bool
}

// NewMetrics creates a new Metrics instance with the provided meter.
// If meter is nil, uses the global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	m.predicateFailures, err = meter.Int64Counter(
		"jnicheck.predicate.failures",
		metric.WithDescription("Predicate failures by check"),
		metric.WithUnit("{diagnostic}"),
	)
	if err != nil {
		return nil, err
	}

	m.framesEntered, err = meter.Int64Counter(
		"jnicheck.frames.entered",
		metric.WithDescription("Local frames entered"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return nil, err
	}

	m.contextsActive, err = meter.Int64UpDownCounter(
		"jnicheck.contexts.active",
		metric.WithDescription("Number of live call contexts"),
		metric.WithUnit("{context}"),
	)
	if err != nil {
		return nil, err
	}

	m.frameDepth, err = meter.Int64Histogram(
		"jnicheck.frames.depth",
		metric.WithDescription("Frame stack depth after each enter"),
		metric.WithUnit("{frame}"),
		metric.WithExplicitBucketBoundaries(1, 2, 4, 8, 16, 32, 64),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

// RecordFailure records one failed predicate.
func (m *Metrics) RecordFailure(ctx context.Context, check string) {
	if m == nil || !m.initialized {
		return
	}
	m.predicateFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("check", check)))
}

// RecordFrameEntered records a frame push and the resulting stack depth.
func (m *Metrics) RecordFrameEntered(ctx context.Context, depth int, sentinel bool) {
	if m == nil || !m.initialized {
		return
	}
	m.framesEntered.Add(ctx, 1, metric.WithAttributes(attribute.Bool("sentinel", sentinel)))
	m.frameDepth.Record(ctx, int64(depth))
}

// RecordContextStarted increments the active context gauge.
func (m *Metrics) RecordContextStarted(ctx context.Context) {
	if m == nil || !m.initialized {
		return
	}
	m.contextsActive.Add(ctx, 1)
}

// RecordContextEnded decrements the active context gauge.
func (m *Metrics) RecordContextEnded(ctx context.Context) {
	if m == nil || !m.initialized {
		return
	}
	m.contextsActive.Add(ctx, -1)
}

// Tracer returns the package tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartSpan starts a new span with the given name and attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}
