package diag

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/jnicheck/internal/config"
)

// Connect dials the NATS server named in cfg.
func Connect(cfg config.NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("jnicheck"),
		nats.Timeout(5 * time.Second),
	}
	if cfg.Token.IsSet() {
		opts = append(opts, nats.Token(cfg.Token.Value()))
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// NATSSink publishes each diagnostic as JSON to <prefix>.<check>.
type NATSSink struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
	failed atomic.Uint64
}

// NewNATSSink returns a sink publishing on nc. Publish failures are logged
// and counted, never returned to the checker.
func NewNATSSink(nc *nats.Conn, prefix string, logger *zap.Logger) (*NATSSink, error) {
	if nc == nil {
		return nil, ErrNoConnection
	}
	if prefix == "" {
		return nil, ErrEmptyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSSink{nc: nc, prefix: prefix, logger: logger.Named("diag.nats")}, nil
}

// Subject returns the subject a diagnostic with check is published on.
func (s *NATSSink) Subject(check Check) string {
	return s.prefix + "." + string(check)
}

// Report implements Sink.
func (s *NATSSink) Report(d Diagnostic) {
	data, err := json.Marshal(d)
	if err == nil {
		err = s.nc.Publish(s.Subject(d.Check), data)
	}
	if err != nil {
		s.failed.Add(1)
		PublishFailures.Inc()
		s.logger.Warn("publish diagnostic", zap.String("check", string(d.Check)), zap.Error(err))
	}
}

// Failed returns the number of diagnostics that could not be published.
func (s *NATSSink) Failed() uint64 {
	return s.failed.Load()
}

// Flush waits until every published diagnostic reached the server.
func (s *NATSSink) Flush() error {
	return s.nc.Flush()
}
