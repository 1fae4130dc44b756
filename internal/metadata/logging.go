package metadata

import "go.uber.org/zap"

// Logger wraps zap.Logger with cache events.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a new Logger. If logger is nil, uses a no-op logger.
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("metadata")}
}

// MethodRegistered logs a new method record.
func (l *Logger) MethodRegistered(rec *MethodRecord) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Debug("method registered",
		zap.Stringer("method_id", rec.ID),
		zap.String("class", rec.Class),
		zap.String("name", rec.Name),
		zap.String("descriptor", rec.Descriptor),
		zap.Bool("static", rec.Static),
	)
}

// FieldRegistered logs a new field record.
func (l *Logger) FieldRegistered(rec *FieldRecord) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Debug("field registered",
		zap.Stringer("field_id", rec.ID),
		zap.String("class", rec.Class),
		zap.String("name", rec.Name),
		zap.String("descriptor", rec.Descriptor),
		zap.Bool("static", rec.Static),
		zap.Bool("mutable_final", rec.MutableFinal),
	)
}

// Rejected logs a registration refused by a configured limit.
func (l *Logger) Rejected(kind, name string, limit int) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Warn("identifier cache full",
		zap.String("kind", kind),
		zap.String("name", name),
		zap.Int("limit", limit),
	)
}
