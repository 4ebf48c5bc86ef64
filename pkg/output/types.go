// Package output provides formatting and output generation for device
// diagnostic reports.
package output

import (
	"time"

	"github.com/gridwatch/evaudit/pkg/diagnostic"
)

// Batch is the complete analysis output for one run.
type Batch struct {
	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	// Devices contains one report per analyzed device.
	Devices []*diagnostic.Report `json:"devices"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate statistics.
type Summary struct {
	// DevicesAnalyzed is the number of devices processed.
	DevicesAnalyzed int `json:"devices_analyzed"`

	// DevicesFailed is the number of devices whose analysis failed.
	DevicesFailed int `json:"devices_failed"`

	// DevicesWithIssues is the number of devices with at least one finding.
	DevicesWithIssues int `json:"devices_with_issues"`

	// TotalIssues is the total number of findings across all devices.
	TotalIssues int `json:"total_issues"`
}

// Metadata provides context about the analysis run.
type Metadata struct {
	// ConfigFile is the path to the configuration file used, if any.
	ConfigFile string `json:"config_file,omitempty"`

	// LogDir is the directory that was scanned for device folders.
	LogDir string `json:"log_dir"`

	// AnalyzedAt is when the analysis was performed.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Duration is how long the analysis took.
	Duration time.Duration `json:"duration_ns"`
}

// NewBatch creates a Batch from per-device reports.
func NewBatch(reports []*diagnostic.Report, logDir, configFile string, started time.Time) *Batch {
	batch := &Batch{
		Devices: reports,
		Metadata: Metadata{
			ConfigFile: configFile,
			LogDir:     logDir,
			AnalyzedAt: started,
			Duration:   time.Since(started),
		},
	}

	batch.Summary.DevicesAnalyzed = len(reports)
	for _, rep := range reports {
		if rep.Err != "" {
			batch.Summary.DevicesFailed++
			continue
		}
		if issues := rep.TotalIssues(); issues > 0 {
			batch.Summary.DevicesWithIssues++
			batch.Summary.TotalIssues += issues
		}
	}

	return batch
}

// HasIssues returns true if any findings or failures were recorded.
func (b *Batch) HasIssues() bool {
	return b.Summary.TotalIssues > 0 || b.Summary.DevicesFailed > 0
}
