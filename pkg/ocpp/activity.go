package ocpp

import (
	"regexp"
	"time"
)

// monthTokenPattern matches the month abbreviation opening a protocol log
// line; the OCPP log shares the device log's year-less timestamp grammar.
var monthTokenPattern = regexp.MustCompile(`^([A-Z][a-z]{2}) +\d{1,2} \d{2}:\d{2}:\d{2}`)

var monthsByName = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// ActivityIndex records which calendar months carry any protocol log
// activity. It deliberately works at month granularity, matching the
// observed gap-probe behavior; this can misclassify near month or year
// boundaries and is kept rather than silently fixed.
type ActivityIndex struct {
	months map[time.Month]bool
}

// BuildActivityIndex scans protocol log lines and records the months in
// which any message was logged.
func BuildActivityIndex(lines []string) *ActivityIndex {
	idx := &ActivityIndex{months: make(map[time.Month]bool)}
	for _, line := range lines {
		if m := monthTokenPattern.FindStringSubmatch(line); m != nil {
			if month, ok := monthsByName[m[1]]; ok {
				idx.months[month] = true
			}
		}
	}
	return idx
}

// ActiveBetween reports whether any protocol activity falls within the
// calendar-month span of [from, to]. Only months are compared.
func (idx *ActivityIndex) ActiveBetween(from, to time.Time) bool {
	if idx == nil || len(idx.months) == 0 {
		return false
	}
	for _, month := range monthSpan(from, to) {
		if idx.months[month] {
			return true
		}
	}
	return false
}

// monthSpan enumerates the months covered by [from, to], capped at a full
// year since gaps that long are suppressed upstream anyway.
func monthSpan(from, to time.Time) []time.Month {
	var months []time.Month
	cur := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12 && !cur.After(last); i++ {
		months = append(months, cur.Month())
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}
