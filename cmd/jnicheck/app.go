package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/jnicheck/internal/config"
	"github.com/fyrsmithlabs/jnicheck/internal/diag"
	"github.com/fyrsmithlabs/jnicheck/internal/jnicheck"
	"github.com/fyrsmithlabs/jnicheck/internal/logging"
	"github.com/fyrsmithlabs/jnicheck/internal/replay"
	"github.com/fyrsmithlabs/jnicheck/internal/telemetry"
)

// app holds the process-wide services every command shares.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
	sink   diag.Sink

	nc      *nats.Conn
	natsOut *diag.NATSSink
	limiter *diag.RateLimitedSink
}

// setup loads configuration and starts logging, telemetry and the
// diagnostic sinks.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Checker.Verbose = true
	}

	tel, err := telemetry.New(ctx, telemetry.ConfigFromObservability(cfg.Observability))
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	logCfg, err := logging.ConfigFromObservability(cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	if verbose && logCfg.Level > zapcore.DebugLevel {
		logCfg.Level = zapcore.DebugLevel
		logCfg.Sampling.Enabled = false
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, tel: tel}
	if err := a.buildSink(); err != nil {
		a.close(ctx)
		return nil, err
	}
	for _, reason := range tel.Health().Reasons {
		logger.Warn(ctx, "telemetry degraded", zap.String("reason", reason))
	}
	return a, nil
}

// buildSink assembles log and NATS delivery behind the optional rate
// limit. Instrument counts every diagnostic, dropped or not.
func (a *app) buildSink() error {
	out := diag.FanOut{diag.NewLogSink(a.logger)}

	if nc := a.cfg.Diagnostics.NATS; nc.URL != "" {
		conn, err := diag.Connect(nc)
		if err != nil {
			return err
		}
		a.nc = conn
		a.natsOut, err = diag.NewNATSSink(conn, nc.SubjectPrefix, a.logger.Underlying())
		if err != nil {
			return err
		}
		out = append(out, a.natsOut)
	}

	var sink diag.Sink = out
	if rate := a.cfg.Diagnostics.RateLimit; rate > 0 {
		limiter, err := diag.NewRateLimitedSink(sink, rate, a.cfg.Diagnostics.Burst)
		if err != nil {
			return err
		}
		a.limiter = limiter
		sink = limiter
	}
	a.sink = diag.Instrument(sink)
	return nil
}

// runner returns a replay runner wired to the app's sinks and telemetry.
func (a *app) runner() (*replay.Runner, error) {
	metrics, err := jnicheck.NewMetrics(a.tel.Meter(jnicheck.InstrumentationName))
	if err != nil {
		return nil, err
	}
	return replay.NewRunner(
		replay.WithCheckerConfig(a.cfg.Checker),
		replay.WithSink(a.sink),
		replay.WithLogger(a.logger.Underlying()),
		replay.WithMetrics(metrics),
		replay.WithTracer(a.tel.Tracer(replay.InstrumentationName)),
	), nil
}

// close flushes and releases everything setup started.
func (a *app) close(ctx context.Context) {
	var errs []error
	if a.limiter != nil {
		for check, n := range a.limiter.Dropped() {
			a.logger.Warn(ctx, "diagnostics dropped by rate limit",
				zap.String("check", string(check)), zap.Uint64("dropped", n))
		}
	}
	if a.natsOut != nil {
		if err := a.natsOut.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("nats flush: %w", err))
		}
		if n := a.natsOut.Failed(); n > 0 {
			a.logger.Warn(ctx, "diagnostics not published", zap.Uint64("failed", n))
		}
	}
	if a.nc != nil {
		a.nc.Close()
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error(ctx, "shutdown incomplete", zap.Error(err))
	}
	_ = a.logger.Sync()
}
