// Package firmware builds a dated firmware-version history from device
// logs for correlating issues with recent updates.
package firmware

import (
	"regexp"
	"sort"
	"time"

	"github.com/gridwatch/evaudit/pkg/logset"
	"github.com/gridwatch/evaudit/pkg/timeline"
)

var (
	// Application firmware version, logged at boot and on query.
	fw2Pattern = regexp.MustCompile(`Fw2Ver:\s*([\d.]+)`)

	// MCU firmware version.
	fw1Pattern = regexp.MustCompile(`Get Fw1Ver:\s*([\d.]+)`)

	// Firmware update process markers. The version capture must not
	// swallow the dot before a file extension.
	unpackPattern = regexp.MustCompile(`EVCS_UnpackZipFW.*ACMAX_FW_v(\d+(?:\.\d+)*)`)
	rebootPattern = regexp.MustCompile(`Update system done, reboot system now`)
)

// Change is one firmware-version change on the device timeline.
type Change struct {
	At      time.Time
	Version string

	// Previous is empty for the first observed version.
	Previous string

	// MCUVersion is the MCU firmware last seen at or before this change,
	// when known.
	MCUVersion string
}

// UpdateEvent is a firmware update process marker.
type UpdateEvent struct {
	At            time.Time
	Type          string // "initiated" or "completed"
	TargetVersion string // set for initiated events
}

// History is the ordered, de-duplicated firmware record for one device.
type History struct {
	Changes      []Change
	UpdateEvents []UpdateEvent

	Current    string
	Previous   string
	MCUVersion string
}

// UpdateCount is the number of actual version changes, not counting the
// initial observation.
func (h *History) UpdateCount() int {
	if len(h.Changes) <= 1 {
		return 0
	}
	return len(h.Changes) - 1
}

// VersionAt answers which firmware was active at t: the latest change at
// or before t. With no change preceding t the earliest known version is
// returned, flagged approximate. Empty history returns "".
func (h *History) VersionAt(t time.Time) (version string, approximate bool) {
	if len(h.Changes) == 0 {
		return "", false
	}
	for i := len(h.Changes) - 1; i >= 0; i-- {
		if !h.Changes[i].At.After(t) {
			return h.Changes[i].Version, false
		}
	}
	return h.Changes[0].Version, true
}

// sample is one raw version observation before de-duplication.
type sample struct {
	at      time.Time
	version string
	mcu     string
}

// Build scans system log lines (oldest rotation first) and constructs
// the firmware history, dated through the shared timeline's anchors.
func Build(lines []logset.Line, tl *timeline.Timeline) *History {
	h := &History{}

	var samples []sample
	mcu := ""

	for _, line := range lines {
		at, dated := tl.ResolveStamp(line.Text)
		if !dated {
			continue
		}

		if m := fw1Pattern.FindStringSubmatch(line.Text); m != nil {
			mcu = m[1]
			h.MCUVersion = m[1]
		}
		if m := fw2Pattern.FindStringSubmatch(line.Text); m != nil {
			samples = append(samples, sample{at: at, version: m[1], mcu: mcu})
		}
		if m := unpackPattern.FindStringSubmatch(line.Text); m != nil {
			h.UpdateEvents = append(h.UpdateEvents, UpdateEvent{
				At:            at,
				Type:          "initiated",
				TargetVersion: m[1],
			})
		}
		if rebootPattern.MatchString(line.Text) {
			h.UpdateEvents = append(h.UpdateEvents, UpdateEvent{
				At:   at,
				Type: "completed",
			})
		}
	}

	sort.SliceStable(samples, func(i, j int) bool { return samples[i].at.Before(samples[j].at) })

	prev := ""
	for _, s := range samples {
		if s.version == prev {
			continue
		}
		h.Changes = append(h.Changes, Change{
			At:         s.at,
			Version:    s.version,
			Previous:   prev,
			MCUVersion: s.mcu,
		})
		prev = s.version
	}

	if n := len(h.Changes); n > 0 {
		h.Current = h.Changes[n-1].Version
		if n > 1 {
			h.Previous = h.Changes[n-2].Version
		}
	}

	return h
}
