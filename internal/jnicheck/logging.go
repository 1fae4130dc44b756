package jnicheck

import (
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/jnicheck/internal/logging"
	"github.com/fyrsmithlabs/jnicheck/internal/vm"
)

// Logger wraps zap.Logger with checker lifecycle events.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a new Logger. If logger is nil, uses a no-op logger.
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("jnicheck")}
}

// Initialized logs the class bindings made by Init.
func (l *Logger) Initialized(runID string, bound int) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info("checker initialized", zap.String("run.id", runID), zap.Int("classes", bound))
}

// ContextStarted logs a new call context.
func (l *Logger) ContextStarted(s *Context) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Debug("context started",
		zap.Uint64("context.id", s.ID),
		zap.Stringer("env", s.Env),
		zap.String("thread", s.Name),
		zap.Int64("thread_id", s.ThreadID),
		zap.Stringer("phase", s.Phase()),
	)
}

// ContextEnded logs the end of a call context. depth is the number of
// frames still on its stack.
func (l *Logger) ContextEnded(s *Context, depth int) {
	if l == nil || l.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.Uint64("context.id", s.ID),
		zap.String("thread", s.Name),
	}
	if depth > 0 {
		fields = append(fields, zap.Int("open_frames", depth))
	}
	l.logger.Debug("context ended", fields...)
}

// PhaseTransition logs a runtime phase change.
func (l *Logger) PhaseTransition(from, to vm.Phase, contexts int) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info("phase transition",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Stringer("mode", to.Mode()),
		zap.Int("contexts", contexts),
	)
}

// CapacityGrown logs a local frame that was doubled to keep recording.
func (l *Logger) CapacityGrown(s *Context, from, to int) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Debug("local frame capacity grown",
		zap.Uint64("context.id", s.ID),
		zap.Int("from", from),
		zap.Int("to", to),
	)
}

// RegistrationFailed logs an identifier the cache refused to record.
func (l *Logger) RegistrationFailed(kind, name, descriptor string, err error) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Warn("identifier not cached",
		zap.String("kind", kind),
		zap.String("name", name),
		zap.String("descriptor", descriptor),
		zap.Error(err),
	)
}

// InvariantFailure logs an internal consistency failure.
func (l *Logger) InvariantFailure(e *InvariantError) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Error("invariant violated",
		zap.String("op", e.Op),
		zap.Uint64("context.id", e.ContextID),
		zap.Error(e.Err),
	)
}

// LeakAudit logs the outcome of a shutdown leak audit.
func (l *Logger) LeakAudit(leaks int) {
	if l == nil || l.logger == nil {
		return
	}
	if leaks == 0 {
		l.logger.Info("leak audit clean")
		return
	}
	l.logger.Warn("leak audit found unreleased resources", zap.Int("leaks", leaks))
}

// TracedCall logs one intercepted call at trace level.
func (l *Logger) TracedCall(s *Context, site string) {
	if l == nil || l.logger == nil {
		return
	}
	if ce := l.logger.Check(logging.TraceLevel, "call"); ce != nil {
		ce.Write(
			zap.Uint64("context.id", s.ID),
			zap.String("thread", s.Name),
			zap.String("site", site),
			zap.Int("depth", s.Depth()),
		)
	}
}
