// Package diagnostic merges every detector's output into one structured
// per-device report and runs device analyses in parallel.
package diagnostic

import (
	"time"

	"github.com/gridwatch/evaudit/pkg/connstate"
	"github.com/gridwatch/evaudit/pkg/firmware"
	"github.com/gridwatch/evaudit/pkg/ledger"
	"github.com/gridwatch/evaudit/pkg/reboot"
)

// Report is the complete diagnostic record for one device. It is the
// in-memory contract handed to the output formatters.
type Report struct {
	Serial string `json:"serial"`
	Folder string `json:"folder"`

	// Err carries a per-device fatal failure; the rest of the report is
	// empty when set. Sibling devices are unaffected.
	Err string `json:"error,omitempty"`

	// Warnings lists skipped or unreadable files.
	Warnings []string `json:"warnings,omitempty"`

	// LowConfidence is set when year inference had no RTC anchors to work
	// with and fell back to the current year.
	LowConfidence bool `json:"low_confidence"`
	AnchorCount   int  `json:"anchor_count"`

	Reboots      []reboot.Event    `json:"reboots"`
	Transactions *ledger.Findings  `json:"transactions"`
	Connectors   *connstate.Result `json:"connectors"`
	Firmware     *firmware.History `json:"firmware"`

	Elapsed time.Duration `json:"elapsed_ns"`
}

// TotalIssues sums the findings across all detectors.
func (r *Report) TotalIssues() int {
	n := len(r.Reboots)
	if r.Transactions != nil {
		n += r.Transactions.TotalIssues()
	}
	if r.Connectors != nil {
		n += r.Connectors.TotalIssues()
	}
	return n
}
