package config

import (
	"os"
	"time"
)

// Default values for configuration.
const (
	DefaultReportGap        = 2 * time.Hour
	DefaultProbeGap         = 24 * time.Hour
	DefaultMinCorrectedGap  = 3 * time.Minute
	DefaultBannerGap        = 6 * time.Minute
	DefaultMeterFloor       = 100_000
	DefaultWorkers          = 8
	DefaultProgressInterval = 500 * time.Millisecond
	DefaultFormat           = "text"
	DefaultWebhookTimeout   = 10 * time.Second
)

// Environment variable names.
const (
	EnvLogDir = "EVAUDIT_LOG_DIR"
	EnvFormat = "EVAUDIT_FORMAT"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Gaps: GapConfig{
			Report:       DefaultReportGap,
			Probe:        DefaultProbeGap,
			MinCorrected: DefaultMinCorrectedGap,
			Banner:       DefaultBannerGap,
		},
		Meter: MeterConfig{
			Floor: DefaultMeterFloor,
		},
		Runner: RunnerConfig{
			Workers:          DefaultWorkers,
			ProgressInterval: DefaultProgressInterval,
		},
		Format: DefaultFormat,
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if dir := os.Getenv(EnvLogDir); dir != "" {
		c.LogDir = dir
	}
	if format := os.Getenv(EnvFormat); format != "" {
		c.Format = format
	}
}
