// Package config provides configuration loading for jnicheck.
//
// Configuration comes from an optional YAML file overridden by JNICHECK_*
// environment variables. Missing values fall back to Default().
package config

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Config holds the complete jnicheck configuration.
type Config struct {
	Checker       CheckerConfig       `koanf:"checker"`
	Diagnostics   DiagnosticsConfig   `koanf:"diagnostics"`
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// CheckerConfig controls the validator itself.
type CheckerConfig struct {
	Enabled bool `koanf:"enabled"`
	Verbose bool `koanf:"verbose"`
	// MethodCount enables per-site call statistics.
	MethodCount bool `koanf:"method_count"`
	// TraceMethods and TraceThreads are '*' globs selecting calls to log at
	// trace level. An empty TraceMethods disables call tracing.
	TraceMethods         string `koanf:"trace_methods"`
	TraceThreads         string `koanf:"trace_threads"`
	MaxHierarchyDepth    int    `koanf:"max_hierarchy_depth"`
	MaxMethods           int    `koanf:"max_methods"` // 0 = unbounded
	MaxFields            int    `koanf:"max_fields"`  // 0 = unbounded
	ReleasedHistory      int    `koanf:"released_history"`
	DefaultFrameCapacity int    `koanf:"default_frame_capacity"`
}

// DiagnosticsConfig controls diagnostic delivery.
type DiagnosticsConfig struct {
	// RateLimit is the sustained number of reports per second per check
	// code. Zero disables rate limiting.
	RateLimit float64    `koanf:"rate_limit"`
	Burst     int        `koanf:"burst"`
	NATS      NATSConfig `koanf:"nats"`
}

// NATSConfig enables publishing diagnostics to NATS when URL is set.
type NATSConfig struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
	Token         Secret `koanf:"token"`
}

// ServerConfig holds the inspection HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds logging and OpenTelemetry configuration.
type ObservabilityConfig struct {
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	OTLPProtocol    string `koanf:"otlp_protocol"`
	OTLPInsecure    bool   `koanf:"otlp_insecure"`
	ServiceName     string `koanf:"service_name"`
}

// Default values.
const (
	DefaultPort                 = 9464
	DefaultShutdownTimeout      = 10 * time.Second
	DefaultMaxHierarchyDepth    = 64
	DefaultReleasedHistory      = 1024
	DefaultFrameCapacity        = 16
	DefaultSubjectPrefix        = "jnicheck.diagnostics"
	DefaultServiceName          = "jnicheck"
	DefaultOTLPEndpoint         = "localhost:4317"
	defaultHost                 = "127.0.0.1"
	defaultLogLevel             = "info"
	defaultLogFormat            = "console"
	defaultOTLPProtocol         = "grpc"
	defaultTraceThreadsWildcard = "*"
)

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Checker: CheckerConfig{
			Enabled:              true,
			TraceThreads:         defaultTraceThreadsWildcard,
			MaxHierarchyDepth:    DefaultMaxHierarchyDepth,
			ReleasedHistory:      DefaultReleasedHistory,
			DefaultFrameCapacity: DefaultFrameCapacity,
		},
		Diagnostics: DiagnosticsConfig{
			NATS: NATSConfig{SubjectPrefix: DefaultSubjectPrefix},
		},
		Server: ServerConfig{
			Host:            defaultHost,
			Port:            DefaultPort,
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		Observability: ObservabilityConfig{
			LogLevel:     defaultLogLevel,
			LogFormat:    defaultLogFormat,
			OTLPEndpoint: DefaultOTLPEndpoint,
			OTLPProtocol: defaultOTLPProtocol,
			ServiceName:  DefaultServiceName,
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	ch := c.Checker
	if ch.MaxHierarchyDepth <= 0 {
		errs = append(errs, fmt.Errorf("checker.max_hierarchy_depth must be positive, got %d", ch.MaxHierarchyDepth))
	}
	if ch.MaxMethods < 0 || ch.MaxFields < 0 {
		errs = append(errs, errors.New("checker.max_methods and checker.max_fields must be >= 0"))
	}
	if ch.ReleasedHistory <= 0 {
		errs = append(errs, fmt.Errorf("checker.released_history must be positive, got %d", ch.ReleasedHistory))
	}
	if ch.DefaultFrameCapacity <= 0 {
		errs = append(errs, fmt.Errorf("checker.default_frame_capacity must be positive, got %d", ch.DefaultFrameCapacity))
	}
	for key, pattern := range map[string]string{"trace_methods": ch.TraceMethods, "trace_threads": ch.TraceThreads} {
		if _, err := path.Match(pattern, ""); err != nil {
			errs = append(errs, fmt.Errorf("checker.%s %q: %w", key, pattern, err))
		}
	}

	d := c.Diagnostics
	if d.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("diagnostics.rate_limit must be >= 0, got %v", d.RateLimit))
	}
	if d.RateLimit > 0 && d.Burst < 1 {
		errs = append(errs, errors.New("diagnostics.burst must be >= 1 when rate_limit is set"))
	}
	if d.NATS.URL != "" && d.NATS.SubjectPrefix == "" {
		errs = append(errs, errors.New("diagnostics.nats.subject_prefix required when nats.url is set"))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	o := c.Observability
	if o.LogFormat != "json" && o.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("observability.log_format must be 'json' or 'console', got %q", o.LogFormat))
	}
	if !strings.EqualFold(o.LogLevel, "trace") {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(o.LogLevel)); err != nil {
			errs = append(errs, fmt.Errorf("observability.log_level: %w", err))
		}
	}
	if o.EnableTelemetry {
		if o.ServiceName == "" {
			errs = append(errs, errors.New("service name required when telemetry is enabled"))
		}
		if o.OTLPProtocol != "grpc" && o.OTLPProtocol != "http" {
			errs = append(errs, fmt.Errorf("observability.otlp_protocol must be 'grpc' or 'http', got %q", o.OTLPProtocol))
		}
	}

	return errors.Join(errs...)
}
