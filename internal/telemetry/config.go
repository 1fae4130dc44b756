package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/jnicheck/internal/config"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool   `koanf:"enabled"`
	Endpoint       string `koanf:"endpoint"`
	Protocol       string `koanf:"protocol"` // grpc or http
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
	// Insecure disables TLS. Only allowed for loopback endpoints.
	Insecure      bool           `koanf:"insecure"`
	TLSSkipVerify bool           `koanf:"tls_skip_verify"`
	Sampling      SamplingConfig `koanf:"sampling"`
	Metrics       MetricsConfig  `koanf:"metrics"`
	Shutdown      ShutdownConfig `koanf:"shutdown"`
}

// SamplingConfig controls trace sampling behavior.
type SamplingConfig struct {
	Rate float64 `koanf:"rate"` // 0.0-1.0
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Enabled        bool            `koanf:"enabled"`
	ExportInterval config.Duration `koanf:"export_interval"`
}

// ShutdownConfig controls graceful shutdown behavior.
type ShutdownConfig struct {
	Timeout config.Duration `koanf:"timeout"`
}

// Version is stamped on the service resource.
var Version = "0.1.0"

// NewDefaultConfig returns telemetry defaults. Telemetry is off unless
// observability.enable_telemetry is set.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:       config.DefaultOTLPEndpoint,
		Protocol:       "grpc",
		ServiceName:    config.DefaultServiceName,
		ServiceVersion: Version,
		Insecure:       true,
		Sampling:       SamplingConfig{Rate: 1.0},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: config.Duration(15 * time.Second),
		},
		Shutdown: ShutdownConfig{
			Timeout: config.Duration(5 * time.Second),
		},
	}
}

// ConfigFromObservability derives a telemetry config from the application's
// observability section.
func ConfigFromObservability(o config.ObservabilityConfig) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = o.EnableTelemetry
	if o.OTLPEndpoint != "" {
		cfg.Endpoint = o.OTLPEndpoint
	}
	if o.OTLPProtocol != "" {
		cfg.Protocol = o.OTLPProtocol
	}
	if o.ServiceName != "" {
		cfg.ServiceName = o.ServiceName
	}
	cfg.Insecure = o.OTLPInsecure || isLoopback(cfg.Endpoint)
	return cfg
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return errors.New("endpoint is required when telemetry is enabled")
	}
	if c.ServiceName == "" {
		return errors.New("service_name is required when telemetry is enabled")
	}
	if c.Protocol != "grpc" && c.Protocol != "http" {
		return fmt.Errorf("protocol must be 'grpc' or 'http', got %q", c.Protocol)
	}
	if c.Insecure && !isLoopback(c.Endpoint) {
		return errors.New("insecure connections to remote endpoints are not allowed; use TLS or a loopback endpoint")
	}
	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sampling.rate must be between 0 and 1, got %f", c.Sampling.Rate)
	}
	if c.Metrics.Enabled && c.Metrics.ExportInterval.Duration() <= 0 {
		return errors.New("metrics.export_interval must be positive when metrics enabled")
	}
	if c.Shutdown.Timeout.Duration() <= 0 {
		return errors.New("shutdown.timeout must be positive")
	}
	return nil
}

// isLoopback reports whether endpoint ("host:port", optionally with an
// http(s) scheme) names a loopback host.
func isLoopback(endpoint string) bool {
	host := stripScheme(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// stripScheme removes http:// or https:// from an endpoint URL.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
