// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// The package wraps Zap with:
//   - Custom Trace level (-2, below Debug) used by the call tracer
//   - Dual output (stdout + OpenTelemetry)
//   - Automatic context field injection (trace_id, run.id, context.id)
//   - Secret redaction at the encoder
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg, err := logging.ConfigFromObservability(appCfg.Observability)
//	logger, err := logging.NewLogger(cfg, otelProvider)
//	defer logger.Sync()
//
//	ctx := logging.WithRunID(ctx, runID)
//	ctx = logging.WithContextID(ctx, 3)
//	logger.Warn(ctx, "dead reference", zap.String("site", "CallVoidMethod"))
//
// Domain packages take the underlying *zap.Logger and name a child for
// their own event methods.
//
// # Sampling
//
// Each level below Error has its own sampler so that a burst of trace
// output cannot starve warnings:
//   - Trace: first 1 per tick, drop rest
//   - Debug: first 10 per tick, drop rest
//   - Info: first 100, then 1 every 10
//   - Warn: first 100, then 1 every 100
//   - Error+: never sampled
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Warn(ctx, "dead reference", zap.String("site", "X"))
//	tl.AssertLogged(t, zapcore.WarnLevel, "dead reference")
//	tl.AssertField(t, "dead reference", "site", "X")
package logging
