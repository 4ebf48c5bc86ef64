package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// serialPattern matches a device serial as embedded in extracted log
// folder names.
var serialPattern = regexp.MustCompile(`^[A-Z0-9]{14}$`)

// Load reads a configuration file over the defaults and applies
// environment overrides. Callers validate after applying their own
// overrides, so a config file may omit fields the command line supplies.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()
	return cfg, nil
}

// Validate checks a configuration for errors and fills defaulted fields.
func Validate(cfg *Config) error {
	if cfg.LogDir == "" {
		return errors.New("log_dir: a log directory is required")
	}

	for i, serial := range cfg.Devices {
		if !serialPattern.MatchString(serial) {
			return fmt.Errorf("devices[%d]: %q is not a 14-character device serial", i, serial)
		}
	}

	if err := validateGaps(&cfg.Gaps); err != nil {
		return fmt.Errorf("gaps: %w", err)
	}

	if cfg.Meter.Floor < 0 {
		return errors.New("meter: floor must not be negative")
	}
	if cfg.Meter.Floor == 0 {
		cfg.Meter.Floor = DefaultMeterFloor
	}

	if cfg.Runner.Workers < 0 {
		return errors.New("runner: workers must not be negative")
	}
	if cfg.Runner.Workers == 0 {
		cfg.Runner.Workers = DefaultWorkers
	}
	if cfg.Runner.ProgressInterval <= 0 {
		cfg.Runner.ProgressInterval = DefaultProgressInterval
	}

	switch cfg.Format {
	case "":
		cfg.Format = DefaultFormat
	case "text", "json":
	default:
		return fmt.Errorf("format: invalid format %q (must be text or json)", cfg.Format)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	// Expand environment variables in token
	wh.Token = expandEnvVar(wh.Token)

	if wh.Trigger != "" {
		switch wh.Trigger {
		case WebhookTriggerOnIssues, WebhookTriggerAlways, WebhookTriggerNever:
			// Valid
		default:
			return fmt.Errorf("invalid trigger %q (must be on_issues, always, or never)", wh.Trigger)
		}
	} else {
		// Default to on_issues
		wh.Trigger = WebhookTriggerOnIssues
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	// Handle ${VAR} format
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}

	// Handle $VAR format (no braces)
	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		varName := s[1:]
		return os.Getenv(varName)
	}

	return s
}

func validateGaps(gaps *GapConfig) error {
	if gaps.Report < 0 || gaps.Probe < 0 || gaps.MinCorrected < 0 || gaps.Banner < 0 {
		return errors.New("thresholds must not be negative")
	}
	if gaps.Report == 0 {
		gaps.Report = DefaultReportGap
	}
	if gaps.Probe == 0 {
		gaps.Probe = DefaultProbeGap
	}
	if gaps.MinCorrected == 0 {
		gaps.MinCorrected = DefaultMinCorrectedGap
	}
	if gaps.Banner == 0 {
		gaps.Banner = DefaultBannerGap
	}
	if gaps.Report >= gaps.Probe {
		return errors.New("report threshold must be below the probe threshold")
	}
	return nil
}
