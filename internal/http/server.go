// Package http provides the jnicheck inspection server.
//
// The server exposes the state of the most recently published checker run:
// call statistics, held resources, and recorded diagnostics. It never drives
// the checker itself.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/jnicheck/internal/diag"
	"github.com/fyrsmithlabs/jnicheck/internal/jnicheck"
	"github.com/fyrsmithlabs/jnicheck/internal/resources"
	"github.com/fyrsmithlabs/jnicheck/internal/telemetry"
)

// Inspector is the read-only checker state the server exposes.
// *jnicheck.Checker implements it.
type Inspector interface {
	Snapshot() jnicheck.Snapshot
	Stats() []jnicheck.CallStat
	Leaks() []resources.Leak
}

// DiagnosticStore is the diagnostic history the server exposes.
// *diag.Recorder implements it.
type DiagnosticStore interface {
	Filter(f diag.Filter) []diag.Diagnostic
	Total() int
}

// HealthReporter reports the health of the process telemetry.
type HealthReporter interface {
	Health() telemetry.HealthStatus
}

// Source is one published checker run.
type Source struct {
	Script      string
	Checker     Inspector
	Diagnostics DiagnosticStore
	Updated     time.Time
}

// Server provides HTTP endpoints for inspecting a checker.
type Server struct {
	echo     *echo.Echo
	logger   *zap.Logger
	config   *Config
	health   HealthReporter
	gatherer prometheus.Gatherer
	metrics  *HTTPMetrics
	source   atomic.Pointer[Source]
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
}

// Option configures a Server.
type Option func(*Server)

// WithHealth adds telemetry health to /health.
func WithHealth(h HealthReporter) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithGatherer sets the Prometheus registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithHTTPMetrics records OpenTelemetry request metrics.
func WithHTTPMetrics(m *HTTPMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a new HTTP server.
func NewServer(logger *zap.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9464,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		logger:   logger,
		config:   cfg,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/stats", s.handleStats)
	v1.GET("/leaks", s.handleLeaks)
	v1.GET("/diagnostics", s.handleDiagnostics)
}

// Publish makes src the run served by the API. It replaces any earlier run.
func (s *Server) Publish(src Source) {
	if src.Updated.IsZero() {
		src.Updated = time.Now()
	}
	s.source.Store(&src)
	s.logger.Info("run published", zap.String("script", src.Script))
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) current() (*Source, error) {
	src := s.source.Load()
	if src == nil || src.Checker == nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "no run published")
	}
	return src, nil
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Published: s.source.Load() != nil}
	if s.health != nil {
		h := s.health.Health()
		resp.Telemetry = &h
		if h.Degraded {
			resp.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c echo.Context) error {
	src, err := s.current()
	if err != nil {
		return err
	}
	resp := StatusResponse{
		Version:  s.config.Version,
		Script:   src.Script,
		Updated:  src.Updated,
		Snapshot: src.Checker.Snapshot(),
	}
	if src.Diagnostics != nil {
		resp.Diagnostics = src.Diagnostics.Total()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStats(c echo.Context) error {
	src, err := s.current()
	if err != nil {
		return err
	}
	calls := src.Checker.Stats()
	var total uint64
	for _, st := range calls {
		total += st.Count
	}
	return c.JSON(http.StatusOK, StatsResponse{
		RunID: src.Checker.Snapshot().RunID,
		Total: total,
		Calls: calls,
	})
}

func (s *Server) handleLeaks(c echo.Context) error {
	src, err := s.current()
	if err != nil {
		return err
	}
	leaks := src.Checker.Leaks()
	return c.JSON(http.StatusOK, LeaksResponse{
		RunID: src.Checker.Snapshot().RunID,
		Count: len(leaks),
		Leaks: leaks,
	})
}

func (s *Server) handleDiagnostics(c echo.Context) error {
	src, err := s.current()
	if err != nil {
		return err
	}
	if src.Diagnostics == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run has no diagnostic history")
	}

	f, limit, err := parseDiagnosticQuery(c)
	if err != nil {
		s.logger.Warn("invalid diagnostics query", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	diags := src.Diagnostics.Filter(f)
	byCheck := CountByCheck(diags)
	matched := len(diags)
	if limit > 0 && len(diags) > limit {
		diags = diags[len(diags)-limit:]
	}
	return c.JSON(http.StatusOK, DiagnosticsResponse{
		Total:       src.Diagnostics.Total(),
		Matched:     matched,
		ByCheck:     byCheck,
		Diagnostics: diags,
	})
}

// parseDiagnosticQuery reads check, context, site and limit. limit keeps
// the newest matches.
func parseDiagnosticQuery(c echo.Context) (diag.Filter, int, error) {
	f := diag.Filter{
		Check: diag.Check(c.QueryParam("check")),
		Site:  c.QueryParam("site"),
	}
	if v := c.QueryParam("context"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return f, 0, fmt.Errorf("context must be a context id: %q", v)
		}
		f.ContextID = id
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, 0, fmt.Errorf("limit must be a non-negative integer: %q", v)
		}
		limit = n
	}
	return f, limit, nil
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
