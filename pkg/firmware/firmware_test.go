package firmware

import (
	"testing"
	"time"

	"github.com/gridwatch/evaudit/pkg/logset"
	"github.com/gridwatch/evaudit/pkg/timeline"
)

func octTimeline() *timeline.Timeline {
	return &timeline.Timeline{
		Anchors: []timeline.Anchor{
			{LogMonth: time.October, LogDay: 1, Year: 2025,
				At: time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func mkLines(texts ...string) []logset.Line {
	lines := make([]logset.Line, len(texts))
	for i, text := range texts {
		lines[i] = logset.Line{Text: text, Source: "SystemLog", Num: i + 1}
	}
	return lines
}

func TestBuild_EmptyInput(t *testing.T) {
	h := Build(nil, octTimeline())
	if len(h.Changes) != 0 || h.Current != "" {
		t.Errorf("Build(nil) = %+v, want empty history", h)
	}
	if v, _ := h.VersionAt(time.Now()); v != "" {
		t.Errorf("VersionAt() = %q, want empty on empty history", v)
	}
}

func TestBuild_DeduplicatesRepeatedVersions(t *testing.T) {
	h := Build(mkLines(
		"Oct  2 08:00:00 evcs: Fw2Ver: 1.2.3",
		"Oct  3 08:00:00 evcs: Fw2Ver: 1.2.3",
		"Oct  4 08:00:00 evcs: Fw2Ver: 1.2.3",
	), octTimeline())

	if len(h.Changes) != 1 {
		t.Fatalf("Changes = %d, want 1 after de-duplication", len(h.Changes))
	}
	if h.Current != "1.2.3" {
		t.Errorf("Current = %q, want 1.2.3", h.Current)
	}
	if h.UpdateCount() != 0 {
		t.Errorf("UpdateCount() = %d, want 0", h.UpdateCount())
	}
}

func TestBuild_VersionChange(t *testing.T) {
	h := Build(mkLines(
		"Oct  2 08:00:00 evcs: Fw2Ver: 1.2.3",
		"Oct 10 08:00:00 evcs: Fw2Ver: 1.3.0",
	), octTimeline())

	if len(h.Changes) != 2 {
		t.Fatalf("Changes = %d, want 2", len(h.Changes))
	}
	if h.Changes[1].Previous != "1.2.3" {
		t.Errorf("Changes[1].Previous = %q, want 1.2.3", h.Changes[1].Previous)
	}
	if h.Current != "1.3.0" || h.Previous != "1.2.3" {
		t.Errorf("Current/Previous = %q/%q, want 1.3.0/1.2.3", h.Current, h.Previous)
	}
	if h.UpdateCount() != 1 {
		t.Errorf("UpdateCount() = %d, want 1", h.UpdateCount())
	}
}

func TestBuild_MCUVersionTracked(t *testing.T) {
	h := Build(mkLines(
		"Oct  2 08:00:00 evcs: Get Fw1Ver: 2.0.1",
		"Oct  2 08:00:01 evcs: Fw2Ver: 1.2.3",
	), octTimeline())

	if h.MCUVersion != "2.0.1" {
		t.Errorf("MCUVersion = %q, want 2.0.1", h.MCUVersion)
	}
	if len(h.Changes) != 1 || h.Changes[0].MCUVersion != "2.0.1" {
		t.Errorf("Changes[0].MCUVersion = %q, want 2.0.1", h.Changes[0].MCUVersion)
	}
}

func TestBuild_UpdateEvents(t *testing.T) {
	h := Build(mkLines(
		"Oct  5 03:00:00 evcs: EVCS_UnpackZipFW: unpack ACMAX_FW_v1.3.0.zip",
		"Oct  5 03:02:00 evcs: Update system done, reboot system now",
	), octTimeline())

	if len(h.UpdateEvents) != 2 {
		t.Fatalf("UpdateEvents = %d, want 2", len(h.UpdateEvents))
	}
	if h.UpdateEvents[0].Type != "initiated" || h.UpdateEvents[0].TargetVersion != "1.3.0" {
		t.Errorf("UpdateEvents[0] = %+v, want initiated target 1.3.0", h.UpdateEvents[0])
	}
	if h.UpdateEvents[1].Type != "completed" {
		t.Errorf("UpdateEvents[1].Type = %q, want completed", h.UpdateEvents[1].Type)
	}
}

func TestVersionAt(t *testing.T) {
	h := Build(mkLines(
		"Oct  2 08:00:00 evcs: Fw2Ver: 1.2.3",
		"Oct 10 08:00:00 evcs: Fw2Ver: 1.3.0",
	), octTimeline())

	v, approx := h.VersionAt(time.Date(2025, time.October, 6, 0, 0, 0, 0, time.UTC))
	if v != "1.2.3" || approx {
		t.Errorf("VersionAt(Oct 6) = %q approx=%v, want 1.2.3 exact", v, approx)
	}

	v, approx = h.VersionAt(time.Date(2025, time.October, 20, 0, 0, 0, 0, time.UTC))
	if v != "1.3.0" || approx {
		t.Errorf("VersionAt(Oct 20) = %q approx=%v, want 1.3.0 exact", v, approx)
	}

	// Before any observation: fall back to the earliest version, flagged
	// approximate.
	v, approx = h.VersionAt(time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC))
	if v != "1.2.3" || !approx {
		t.Errorf("VersionAt(Sep 1) = %q approx=%v, want 1.2.3 approximate", v, approx)
	}
}
