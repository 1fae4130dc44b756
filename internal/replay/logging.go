package replay

import (
	"time"

	"go.uber.org/zap"
)

// Logger wraps zap.Logger with replay run events.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a new Logger. If logger is nil, uses a no-op logger.
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("replay")}
}

// RunStarted logs the start of a script run.
func (l *Logger) RunStarted(script, runID string, events int) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info("replay started",
		zap.String("script", script),
		zap.String("run.id", runID),
		zap.Int("events", events),
	)
}

// EventApplied logs one event when verbose replay logging is on.
func (l *Logger) EventApplied(index int, ev *Event, site string) {
	if l == nil || l.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.Int("event", index),
		zap.String("op", ev.Op),
	}
	if ev.Thread != "" {
		fields = append(fields, zap.String("thread", ev.Thread))
	}
	if site != "" {
		fields = append(fields, zap.String("site", site))
	}
	l.logger.Debug("event applied", fields...)
}

// EventFailed logs a script error that aborted the run.
func (l *Logger) EventFailed(index int, ev *Event, err error) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Error("replay aborted",
		zap.Int("event", index),
		zap.String("op", ev.Op),
		zap.Int("line", ev.Line),
		zap.Error(err),
	)
}

// Dump logs a statistics dump requested by the script.
func (l *Logger) Dump(index int, calls int) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info("data dump", zap.Int("event", index), zap.Int("sites", calls))
}

// RunFinished logs the outcome of a script run.
func (l *Logger) RunFinished(res *Result) {
	if l == nil || l.logger == nil {
		return
	}
	level := zap.InfoLevel
	if !res.Clean() {
		level = zap.WarnLevel
	}
	l.logger.Log(level, "replay finished",
		zap.String("script", res.Script),
		zap.String("run.id", res.RunID),
		zap.Int("events", res.Events),
		zap.Int("diagnostics", len(res.Diagnostics)),
		zap.Int("leaks", len(res.Leaks)),
		zap.Duration("duration", res.Duration.Round(time.Microsecond)),
	)
}
