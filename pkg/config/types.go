// Package config provides configuration loading and validation for
// evaudit.
package config

import (
	"time"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	// LogDir is the directory holding extracted device log folders.
	LogDir string `yaml:"log_dir"`

	// Devices optionally restricts analysis to the listed serials.
	// Empty means every discovered device.
	Devices []string `yaml:"devices,omitempty"`

	Gaps   GapConfig    `yaml:"gaps,omitempty"`
	Meter  MeterConfig  `yaml:"meter,omitempty"`
	Runner RunnerConfig `yaml:"runner,omitempty"`

	// Format selects the report renderer: text or json.
	Format string `yaml:"format,omitempty"`

	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// GapConfig tunes the reboot classifier thresholds.
type GapConfig struct {
	// Report is the smallest gap worth reporting.
	Report time.Duration `yaml:"report,omitempty"`

	// Probe is the gap size beyond which the OCPP log is consulted.
	Probe time.Duration `yaml:"probe,omitempty"`

	// MinCorrected is the smallest RTC-corrected gap counted as a power
	// loss.
	MinCorrected time.Duration `yaml:"min_corrected,omitempty"`

	// Banner is the largest gap a controlled firmware reboot produces.
	Banner time.Duration `yaml:"banner,omitempty"`
}

// MeterConfig tunes the transaction ledger's register audit.
type MeterConfig struct {
	// Floor is the lifetime-energy floor in register units.
	Floor int64 `yaml:"floor,omitempty"`
}

// RunnerConfig tunes the per-device worker pool.
type RunnerConfig struct {
	// Workers caps the pool size.
	Workers int `yaml:"workers,omitempty"`

	// ProgressInterval is the progress render poll interval.
	ProgressInterval time.Duration `yaml:"progress_interval,omitempty"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnIssues fires only when issues are detected (default).
	WebhookTriggerOnIssues WebhookTrigger = "on_issues"
	// WebhookTriggerAlways fires after every analysis.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending diagnostic batches.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_issues" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// MatchesDevice reports whether serial passes the device filter.
func (c *Config) MatchesDevice(serial string) bool {
	if len(c.Devices) == 0 {
		return true
	}
	for _, want := range c.Devices {
		if want == serial {
			return true
		}
	}
	return false
}
