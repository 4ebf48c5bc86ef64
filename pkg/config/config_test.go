package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
log_dir: /var/log/chargers
devices:
  - KKB241600073WE
gaps:
  report: 3h
format: json
`
	path := writeTempFile(t, "config.yaml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogDir != "/var/log/chargers" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/var/log/chargers")
	}
	if cfg.Gaps.Report != 3*time.Hour {
		t.Errorf("Gaps.Report = %v, want 3h", cfg.Gaps.Report)
	}
	if cfg.Gaps.Probe != DefaultProbeGap {
		t.Errorf("Gaps.Probe = %v, want default %v", cfg.Gaps.Probe, DefaultProbeGap)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(context.Background(), "/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempFile(t, "invalid.yaml", `invalid: yaml: content: [`)
	_, err := Load(context.Background(), path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv(EnvLogDir, "/override/dir")

	path := writeTempFile(t, "config.yaml", "log_dir: /original\n")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogDir != "/override/dir" {
		t.Errorf("LogDir = %q, want env override %q", cfg.LogDir, "/override/dir")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing log dir",
			mutate:  func(c *Config) { c.LogDir = "" },
			wantErr: "log_dir",
		},
		{
			name:    "bad serial",
			mutate:  func(c *Config) { c.Devices = []string{"short"} },
			wantErr: "devices[0]",
		},
		{
			name:    "bad format",
			mutate:  func(c *Config) { c.Format = "xml" },
			wantErr: "format",
		},
		{
			name:    "report above probe",
			mutate:  func(c *Config) { c.Gaps.Report = 48 * time.Hour },
			wantErr: "probe",
		},
		{
			name:    "negative workers",
			mutate:  func(c *Config) { c.Runner.Workers = -1 },
			wantErr: "workers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogDir = "/var/log/chargers"
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := &Config{LogDir: "/var/log/chargers"}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Runner.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want default %d", cfg.Runner.Workers, DefaultWorkers)
	}
	if cfg.Meter.Floor != DefaultMeterFloor {
		t.Errorf("Floor = %d, want default %d", cfg.Meter.Floor, DefaultMeterFloor)
	}
	if cfg.Format != DefaultFormat {
		t.Errorf("Format = %q, want default %q", cfg.Format, DefaultFormat)
	}
}

func TestMatchesDevice(t *testing.T) {
	cfg := &Config{Devices: []string{"KKB241600073WE"}}
	if !cfg.MatchesDevice("KKB241600073WE") {
		t.Error("MatchesDevice(listed) = false, want true")
	}
	if cfg.MatchesDevice("AAA111111111AA") {
		t.Error("MatchesDevice(unlisted) = true, want false")
	}

	open := &Config{}
	if !open.MatchesDevice("KKB241600073WE") {
		t.Error("MatchesDevice with empty filter = false, want true")
	}
}
