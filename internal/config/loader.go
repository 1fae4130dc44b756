package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "JNICHECK_"
)

// nestedSections lists two-level sections so their env keys split twice.
var nestedSections = map[string]bool{
	"diagnostics.nats": true,
}

// LoadWithFile loads configuration from a YAML file, then overrides it with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (JNICHECK_CHECKER_MAX_METHODS, ...)
//  2. YAML config file
//  3. Default()
//
// An empty configPath selects ~/.config/jnicheck/config.yaml. A missing
// file is not an error; a file larger than 1MB is.
//
// # Environment Variable Mapping
//
// The prefix is stripped and the first underscore separates the section:
//
//	JNICHECK_CHECKER_MAX_METHODS      -> checker.max_methods
//	JNICHECK_SERVER_PORT              -> server.port
//	JNICHECK_DIAGNOSTICS_NATS_URL     -> diagnostics.nats.url
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "jnicheck", "config.yaml")
	}

	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// readConfigFile returns nil content when the file does not exist.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// envKey maps JNICHECK_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	if sub, rest, ok := strings.Cut(field, "_"); ok && nestedSections[section+"."+sub] {
		return section + "." + sub + "." + rest
	}
	return section + "." + field
}

// applyDefaults restores defaults for values explicitly zeroed by a file or
// the environment where zero is never meaningful.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Checker.MaxHierarchyDepth == 0 {
		cfg.Checker.MaxHierarchyDepth = def.Checker.MaxHierarchyDepth
	}
	if cfg.Checker.ReleasedHistory == 0 {
		cfg.Checker.ReleasedHistory = def.Checker.ReleasedHistory
	}
	if cfg.Checker.DefaultFrameCapacity == 0 {
		cfg.Checker.DefaultFrameCapacity = def.Checker.DefaultFrameCapacity
	}
	if cfg.Diagnostics.NATS.SubjectPrefix == "" {
		cfg.Diagnostics.NATS.SubjectPrefix = def.Diagnostics.NATS.SubjectPrefix
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = def.Observability.ServiceName
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = def.Observability.LogLevel
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = def.Observability.LogFormat
	}
	if cfg.Observability.OTLPProtocol == "" {
		cfg.Observability.OTLPProtocol = def.Observability.OTLPProtocol
	}
}
