// Package telemetry provides OpenTelemetry instrumentation for jnicheck.
//
// # Overview
//
// New builds tracer and meter providers that export over OTLP (gRPC or
// HTTP). Exporter failures never stop the checker: the instance reports
// itself degraded and callers keep using the global no-op providers.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, telemetry.ConfigFromObservability(cfg.Observability))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	metrics, _ := jnicheck.NewMetrics(tel.Meter(jnicheck.InstrumentationName))
//
// Spans wrap replay runs and leak audits. Individual predicates are never
// traced.
//
// # Testing
//
// NewTestTelemetry records spans in memory and exposes a manual metric
// reader:
//
//	tt := telemetry.NewTestTelemetry()
//	tt.AssertSpanExists(t, "replay.run")
package telemetry
