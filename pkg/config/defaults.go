package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittosmb/internal/telemetry"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	cfg.API.ApplyDefaults()
	cfg.SMB.ApplyDefaults()
	applyHistoryDefaults(cfg)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	def := telemetry.DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyHistoryDefaults puts the journal next to the config file unless a
// path is given.
func applyHistoryDefaults(cfg *Config) {
	h := &cfg.History
	if h.Enabled && !h.InMemory && h.Path == "" {
		h.Path = filepath.Join(getConfigDir(), "history")
	}
}

// baseConfig holds the defaults that a zero value cannot express: features
// that are on unless explicitly turned off. Load decodes the file and
// environment on top of it.
func baseConfig() *Config {
	enabled := true
	cfg := &Config{}
	cfg.API.Enabled = &enabled
	cfg.SMB.Enabled = true
	cfg.History.Enabled = true
	cfg.Telemetry.Insecure = true
	return cfg
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := baseConfig()
	ApplyDefaults(cfg)
	return cfg
}
