// Package reboot classifies gaps in a reconstructed device timeline into
// power-loss, firmware-update, and log-failure events.
package reboot

import (
	"fmt"
	"regexp"
	"time"

	"github.com/gridwatch/evaudit/pkg/ocpp"
	"github.com/gridwatch/evaudit/pkg/timeline"
)

// EventType labels the cause assigned to a timeline gap.
type EventType string

// Classification outcomes.
const (
	PowerLoss        EventType = "power_loss"
	FirmwareUpdate   EventType = "firmware_update"
	SystemLogFailure EventType = "systemlog_failure"
	Unknown          EventType = "unknown"
)

// Event is one classified reboot or outage.
type Event struct {
	Type EventType

	// Gap is the duration of the silence in the system log.
	Gap time.Duration

	Before time.Time
	After  time.Time

	// BeforeLine and AfterLine are the raw lines bounding the gap, kept
	// for audit.
	BeforeLine string
	AfterLine  string

	// Evidence lists the observations behind the classification.
	Evidence []string
}

// Markers observed on the lines bounding a gap.
var (
	// The dual-bank switcher logs this once the inactive bank has been
	// flashed and is about to take over.
	firmwareSwitchPattern = regexp.MustCompile(`Update system done, reboot system now`)

	// First line the application logs after any boot.
	startupBannerPattern = regexp.MustCompile(`EVCS system startup`)
)

// Classifier turns a timeline's gaps into classified events. Thresholds
// default to the observed charger behavior; zero values are replaced.
type Classifier struct {
	// ReportGap is the smallest gap worth reporting at all (default 2h).
	ReportGap time.Duration

	// ProbeGap is the gap size beyond which the OCPP log is consulted to
	// separate a dead device from a dead log stream (default 24h).
	ProbeGap time.Duration

	// MinCorrectedGap is the smallest true gap, recovered via an RTC
	// correction, that counts as a power loss (default 3m).
	MinCorrectedGap time.Duration

	// BannerGap is the largest gap a controlled firmware reboot is
	// expected to produce (default 6m).
	BannerGap time.Duration
}

// NewClassifier returns a Classifier with the default thresholds.
func NewClassifier() *Classifier {
	return &Classifier{
		ReportGap:       2 * time.Hour,
		ProbeGap:        24 * time.Hour,
		MinCorrectedGap: 3 * time.Minute,
		BannerGap:       6 * time.Minute,
	}
}

// Classify walks consecutive timeline events and classifies every gap.
// Events excluded by the reconstruction (unresolved RTC resets) never
// participate; gaps at or beyond the 30-day plausibility bound are
// year-inference artifacts and are suppressed entirely.
func (c *Classifier) Classify(tl *timeline.Timeline, activity *ocpp.ActivityIndex) []Event {
	c.applyDefaults()

	var events []Event
	var prev *timeline.Event
	for i := range tl.Events {
		cur := &tl.Events[i]
		if cur.Excluded {
			continue
		}
		if prev == nil {
			prev = cur
			continue
		}

		gap := cur.At.Sub(prev.At)
		if ev, ok := c.classifyGap(prev, cur, gap, activity); ok {
			events = append(events, ev)
		}
		prev = cur
	}
	return events
}

// classifyGap applies the classification rules in order; the first match
// wins.
func (c *Classifier) classifyGap(prev, cur *timeline.Event, gap time.Duration, activity *ocpp.ActivityIndex) (Event, bool) {
	if gap < 0 || gap >= timeline.MaxPlausibleGap {
		return Event{}, false
	}

	ev := Event{
		Gap:        gap,
		Before:     prev.At,
		After:      cur.At,
		BeforeLine: prev.Raw,
		AfterLine:  cur.Raw,
	}

	// Rule 1: a corrected RTC reset pins the true outage duration.
	if cur.Corrected && gap >= c.MinCorrectedGap {
		ev.Type = PowerLoss
		ev.Evidence = append(ev.Evidence,
			fmt.Sprintf("RTC factory reset corrected via RTC query; true outage %s", gap.Round(time.Second)))
		return ev, true
	}

	// Rule 2: explicit dual-bank firmware switch marker. The switcher
	// logs it right before rebooting, so only the gap after it counts.
	if firmwareSwitchPattern.MatchString(prev.Raw) {
		ev.Type = FirmwareUpdate
		ev.Evidence = append(ev.Evidence, "firmware dual-bank switch marker before the gap")
		return ev, true
	}

	// Rule 3: long silences are either a dead device or a dead log
	// stream; the OCPP log decides which.
	if gap > c.ProbeGap {
		if activity.ActiveBetween(prev.At, cur.At) {
			ev.Type = SystemLogFailure
			ev.Evidence = append(ev.Evidence,
				"OCPP log shows activity during the gap months; device stayed powered, system logging failed")
		} else {
			ev.Type = PowerLoss
			ev.Evidence = append(ev.Evidence,
				"no OCPP activity during the gap months; device was fully down")
		}
		return ev, true
	}

	// Rule 4: a startup banner after a short gap is a controlled reboot.
	if startupBannerPattern.MatchString(cur.Raw) {
		if gap < c.BannerGap {
			ev.Type = FirmwareUpdate
			ev.Evidence = append(ev.Evidence,
				fmt.Sprintf("startup banner after %s; controlled reboot", gap.Round(time.Second)))
		} else {
			ev.Type = PowerLoss
			ev.Evidence = append(ev.Evidence,
				fmt.Sprintf("startup banner after %s; too long for a controlled reboot", gap.Round(time.Second)))
		}
		return ev, true
	}

	// Rule 5: anything else long enough to matter is unexplained.
	if gap > c.ReportGap {
		ev.Type = Unknown
		ev.Evidence = append(ev.Evidence,
			fmt.Sprintf("unexplained logging gap of %s", gap.Round(time.Second)))
		return ev, true
	}

	return Event{}, false
}

func (c *Classifier) applyDefaults() {
	def := NewClassifier()
	if c.ReportGap <= 0 {
		c.ReportGap = def.ReportGap
	}
	if c.ProbeGap <= 0 {
		c.ProbeGap = def.ProbeGap
	}
	if c.MinCorrectedGap <= 0 {
		c.MinCorrectedGap = def.MinCorrectedGap
	}
	if c.BannerGap <= 0 {
		c.BannerGap = def.BannerGap
	}
}
