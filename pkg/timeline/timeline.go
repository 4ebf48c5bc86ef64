// Package timeline reconstructs an absolute-date timeline from year-less,
// rotated device logs using embedded RTC query responses as anchors.
package timeline

import (
	"time"

	"github.com/gridwatch/evaudit/pkg/logset"
)

// correctionWindow is how many lines after an RTC-reset literal are
// searched for an RTC query response that pins the true time.
const correctionWindow = 20

// MaxPlausibleGap is the threshold above which an inferred gap is treated
// as a year-inference artifact rather than a real outage. Consumers must
// suppress gaps at or above it.
const MaxPlausibleGap = 30 * 24 * time.Hour

// Anchor is a ground-truth calendar pin: the device's own year-less
// timestamp paired with the absolute RTC time logged on the same line.
type Anchor struct {
	LogMonth time.Month
	LogDay   int
	Year     int
	At       time.Time
}

// Event is one log line placed on the absolute timeline.
type Event struct {
	// At is the reconstructed absolute timestamp. Zero when Excluded.
	At time.Time

	Raw    string
	Source string
	Num    int

	// Corrected marks an RTC-reset line whose true time was recovered
	// from a query response inside the correction window.
	Corrected bool

	// Excluded marks an RTC-reset line with no correction found; it has
	// no trustworthy timestamp and must not feed gap analysis.
	Excluded bool
}

// Timeline is the reconstruction result for one device.
type Timeline struct {
	Events  []Event
	Anchors []Anchor

	// LowConfidence is set when no anchors existed anywhere and year
	// inference fell back to the current wall-clock year.
	LowConfidence bool
}

// Reconstructor builds Timelines. One instance is shared by every
// detector of a device analysis so year inference cannot diverge.
type Reconstructor struct {
	now func() time.Time
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithNow overrides the wall-clock source used for the zero-anchor
// fallback year.
func WithNow(now func() time.Time) Option {
	return func(r *Reconstructor) {
		r.now = now
	}
}

// New creates a Reconstructor.
func New(opts ...Option) *Reconstructor {
	r := &Reconstructor{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconstruct scans lines (oldest rotation first) and produces the
// absolute-date timeline. It is a total function: no lines yields an
// empty, low-confidence timeline.
func (r *Reconstructor) Reconstruct(lines []logset.Line) *Timeline {
	tl := &Timeline{
		Anchors: collectAnchors(lines),
	}
	tl.LowConfidence = len(tl.Anchors) == 0

	fallbackYear := r.now().Year()

	// Year pinned by the most recent RTC-reset correction; zero means
	// anchor-based inference applies.
	overrideYear := 0

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		stamp, ok := parseDeviceStamp(line.Text)
		if !ok {
			continue
		}

		// A fresh anchor returns inference to the anchor set.
		if _, isAnchor := parseRTCInfo(line.Text); isAnchor {
			overrideYear = 0
		}

		if isRTCResetLiteral(line.Text) {
			event, corrected := correctResetLine(lines, i, line)
			if corrected {
				overrideYear = event.At.Year()
			}
			tl.Events = append(tl.Events, event)
			continue
		}

		year := overrideYear
		if year == 0 {
			year = tl.yearFor(stamp.Month, stamp.Day, fallbackYear)
		}

		tl.Events = append(tl.Events, Event{
			At: time.Date(year, stamp.Month, stamp.Day,
				stamp.Hour, stamp.Minute, stamp.Second, stamp.Nanos, time.UTC),
			Raw:    line.Text,
			Source: line.Source,
			Num:    line.Num,
		})
	}

	return tl
}

// correctResetLine searches the correction window after an RTC-reset
// literal for a query response. Without one the line is excluded: its
// timestamp stays undefined rather than guessed.
func correctResetLine(lines []logset.Line, i int, line logset.Line) (Event, bool) {
	for j := i + 1; j <= i+correctionWindow && j < len(lines); j++ {
		if at, ok := parseRTCInfo(lines[j].Text); ok {
			return Event{
				At:        at,
				Raw:       line.Text,
				Source:    line.Source,
				Num:       line.Num,
				Corrected: true,
			}, true
		}
	}
	return Event{
		Raw:      line.Text,
		Source:   line.Source,
		Num:      line.Num,
		Excluded: true,
	}, false
}

// collectAnchors extracts every usable RTC anchor in scan order.
func collectAnchors(lines []logset.Line) []Anchor {
	var anchors []Anchor
	for _, line := range lines {
		stamp, ok := parseDeviceStamp(line.Text)
		if !ok {
			continue
		}
		at, ok := parseRTCInfo(line.Text)
		if !ok {
			continue
		}
		anchors = append(anchors, Anchor{
			LogMonth: stamp.Month,
			LogDay:   stamp.Day,
			Year:     at.Year(),
			At:       at,
		})
	}
	return anchors
}

// ResolveStamp parses a line's year-less timestamp and resolves it to an
// absolute time using this timeline's anchors. Detectors share one
// Timeline so that year inference cannot diverge between them.
func (t *Timeline) ResolveStamp(line string) (time.Time, bool) {
	stamp, ok := parseDeviceStamp(line)
	if !ok {
		return time.Time{}, false
	}
	year := t.YearFor(stamp.Month, stamp.Day)
	return time.Date(year, stamp.Month, stamp.Day,
		stamp.Hour, stamp.Minute, stamp.Second, stamp.Nanos, time.UTC), true
}

// YearFor infers the calendar year for a year-less (month, day) using the
// timeline's anchors: the anchor whose (month, day) most closely precedes
// or equals it wins; with no preceding anchor the earliest anchor's year
// applies; with no anchors at all the current wall-clock year applies.
func (t *Timeline) YearFor(month time.Month, day int) int {
	return t.yearFor(month, day, time.Now().Year())
}

func (t *Timeline) yearFor(month time.Month, day int, fallbackYear int) int {
	if len(t.Anchors) == 0 {
		return fallbackYear
	}

	var best *Anchor
	for i := range t.Anchors {
		a := &t.Anchors[i]
		if calendarAfter(a.LogMonth, a.LogDay, month, day) {
			continue
		}
		if best == nil || !calendarAfter(best.LogMonth, best.LogDay, a.LogMonth, a.LogDay) {
			best = a
		}
	}
	if best != nil {
		return best.Year
	}
	return t.Anchors[0].Year
}

// calendarAfter reports whether (m1, d1) falls after (m2, d2) in
// year-less calendar order.
func calendarAfter(m1 time.Month, d1 int, m2 time.Month, d2 int) bool {
	if m1 != m2 {
		return m1 > m2
	}
	return d1 > d2
}
