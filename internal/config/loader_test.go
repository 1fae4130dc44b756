package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadWithFile_YAML(t *testing.T) {
	path := writeConfig(t, `
checker:
  verbose: true
  method_count: true
  trace_methods: "Call*Method"
  max_methods: 500
diagnostics:
  rate_limit: 10
  burst: 20
  nats:
    url: nats://127.0.0.1:4222
    token: hunter2
server:
  port: 9999
  shutdown_timeout: 3s
observability:
  log_level: debug
  log_format: json
`)
	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.True(t, cfg.Checker.Enabled, "unset booleans keep their defaults")
	assert.True(t, cfg.Checker.Verbose)
	assert.True(t, cfg.Checker.MethodCount)
	assert.Equal(t, "Call*Method", cfg.Checker.TraceMethods)
	assert.Equal(t, "*", cfg.Checker.TraceThreads)
	assert.Equal(t, 500, cfg.Checker.MaxMethods)
	assert.Equal(t, 64, cfg.Checker.MaxHierarchyDepth)
	assert.Equal(t, 10.0, cfg.Diagnostics.RateLimit)
	assert.Equal(t, 20, cfg.Diagnostics.Burst)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Diagnostics.NATS.URL)
	assert.Equal(t, "hunter2", cfg.Diagnostics.NATS.Token.Value())
	assert.Equal(t, "jnicheck.diagnostics", cfg.Diagnostics.NATS.SubjectPrefix)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "json", cfg.Observability.LogFormat)
}

func TestLoadWithFile_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9999\n")
	t.Setenv("JNICHECK_SERVER_PORT", "7777")
	t.Setenv("JNICHECK_CHECKER_MAX_METHODS", "42")
	t.Setenv("JNICHECK_CHECKER_ENABLED", "false")
	t.Setenv("JNICHECK_DIAGNOSTICS_NATS_SUBJECT_PREFIX", "ci.jni")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, 42, cfg.Checker.MaxMethods)
	assert.False(t, cfg.Checker.Enabled)
	assert.Equal(t, "ci.jni", cfg.Diagnostics.NATS.SubjectPrefix)
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithFile_ZeroedValuesRestored(t *testing.T) {
	path := writeConfig(t, "checker:\n  released_history: 0\nserver:\n  port: 0\n")
	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultReleasedHistory, cfg.Checker.ReleasedHistory)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
}

func TestLoadWithFile_Invalid(t *testing.T) {
	_, err := LoadWithFile(writeConfig(t, "observability:\n  log_format: xml\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")

	_, err = LoadWithFile(writeConfig(t, "checker: [unclosed\n"))
	assert.Error(t, err)
}

func TestLoadWithFile_TooLarge(t *testing.T) {
	big := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
	_, err := LoadWithFile(writeConfig(t, big))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"JNICHECK_CHECKER_MAX_METHODS":             "checker.max_methods",
		"JNICHECK_SERVER_PORT":                     "server.port",
		"JNICHECK_OBSERVABILITY_SERVICE_NAME":      "observability.service_name",
		"JNICHECK_DIAGNOSTICS_NATS_URL":            "diagnostics.nats.url",
		"JNICHECK_DIAGNOSTICS_NATS_SUBJECT_PREFIX": "diagnostics.nats.subject_prefix",
		"JNICHECK_DIAGNOSTICS_RATE_LIMIT":          "diagnostics.rate_limit",
		"JNICHECK_DEBUG":                           "debug",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}
