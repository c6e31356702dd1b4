// Package config loads trace-agent configuration from YAML and
// environment variable overrides, following the same load-then-override-
// then-validate shape used elsewhere in the retrieval pack.
package config

import (
	"fmt"
	"os"
	"strconv"

	pkgerrors "tensortrace/pkg/errors"

	"gopkg.in/yaml.v2"
)

// Config is the trace-agent's top-level configuration.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Trace    TraceConfig    `yaml:"trace"`
	Registry RegistryConfig `yaml:"registry"`
}

// AppConfig carries process-identity and logging knobs.
type AppConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ServerConfig configures the trace-agent's HTTP surface
// (/metrics, /healthz, /registry.csv).
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// TraceConfig configures the binary trace log backing the tracer.
type TraceConfig struct {
	LogPath          string `yaml:"log_path"`
	LogCapacityBytes int64  `yaml:"log_capacity_bytes"`
	BufferEventsPath string `yaml:"buffer_events_path"`
}

// RegistryConfig configures the tensor registry and disk-offset map
// capacities.
type RegistryConfig struct {
	TensorCapacity     int `yaml:"tensor_capacity"`
	DiskOffsetCapacity int `yaml:"disk_offset_capacity"`
}

// Load reads configFile (if non-empty), applies defaults for anything left
// unset, then applies environment variable overrides, and validates the
// result.
func Load(configFile string) (*Config, error) {
	cfg := &Config{}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, pkgerrors.ConfigError("load", "failed to read config file").Wrap(err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, pkgerrors.ConfigError("load", "failed to parse config file").Wrap(err)
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "trace-agent"
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.LogFormat == "" {
		cfg.App.LogFormat = "json"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9400
	}

	if cfg.Trace.LogPath == "" {
		cfg.Trace.LogPath = "/tmp/tensor_trace.bin"
	}
	if cfg.Trace.LogCapacityBytes == 0 {
		cfg.Trace.LogCapacityBytes = 256 << 20 // 256 MiB
	}
	if cfg.Trace.BufferEventsPath == "" {
		cfg.Trace.BufferEventsPath = "/tmp/buffer_stats.jsonl"
	}

	if cfg.Registry.TensorCapacity == 0 {
		cfg.Registry.TensorCapacity = 65536
	}
	if cfg.Registry.DiskOffsetCapacity == 0 {
		cfg.Registry.DiskOffsetCapacity = 65536
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.App.Name = getEnvString("TENSORTRACE_APP_NAME", cfg.App.Name)
	cfg.App.LogLevel = getEnvString("TENSORTRACE_LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.LogFormat = getEnvString("TENSORTRACE_LOG_FORMAT", cfg.App.LogFormat)

	cfg.Server.Enabled = getEnvBool("TENSORTRACE_SERVER_ENABLED", cfg.Server.Enabled)
	cfg.Server.Host = getEnvString("TENSORTRACE_SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("TENSORTRACE_SERVER_PORT", cfg.Server.Port)

	cfg.Trace.LogPath = getEnvString("TENSORTRACE_LOG_PATH", cfg.Trace.LogPath)
	cfg.Trace.LogCapacityBytes = getEnvInt64("TENSORTRACE_LOG_CAPACITY_BYTES", cfg.Trace.LogCapacityBytes)
	cfg.Trace.BufferEventsPath = getEnvString("TENSORTRACE_BUFFER_EVENTS_PATH", cfg.Trace.BufferEventsPath)

	cfg.Registry.TensorCapacity = getEnvInt("TENSORTRACE_TENSOR_CAPACITY", cfg.Registry.TensorCapacity)
	cfg.Registry.DiskOffsetCapacity = getEnvInt("TENSORTRACE_DISK_OFFSET_CAPACITY", cfg.Registry.DiskOffsetCapacity)
}

func validate(cfg *Config) error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.App.LogLevel] {
		return pkgerrors.ConfigError("validate", fmt.Sprintf("invalid log level: %s", cfg.App.LogLevel))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.App.LogFormat] {
		return pkgerrors.ConfigError("validate", fmt.Sprintf("invalid log format: %s", cfg.App.LogFormat))
	}
	if cfg.Server.Enabled && (cfg.Server.Port <= 0 || cfg.Server.Port > 65535) {
		return pkgerrors.ConfigError("validate", fmt.Sprintf("invalid server port: %d", cfg.Server.Port))
	}
	if cfg.Trace.LogCapacityBytes <= 0 {
		return pkgerrors.ConfigError("validate", "trace log capacity must be positive")
	}
	if cfg.Registry.TensorCapacity <= 0 || cfg.Registry.DiskOffsetCapacity <= 0 {
		return pkgerrors.ConfigError("validate", "registry capacities must be positive")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
