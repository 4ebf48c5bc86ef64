package timeline

import (
	"regexp"
	"time"
)

// Device log lines carry no year: "Oct 24 13:59:42.123 <rest>".
var deviceStampPattern = regexp.MustCompile(`^([A-Z][a-z]{2}) +(\d{1,2}) (\d{2}):(\d{2}):(\d{2})(\.\d+)?`)

// RTC query responses embed the battery-backed absolute clock:
// "Get RTC Info: 2025.11.10-00:37:12".
var rtcInfoPattern = regexp.MustCompile(`Get RTC Info:\s*(\d{4})\.(\d{2})\.(\d{2})-(\d{2}):(\d{2}):(\d{2})`)

// The RTC falls back to its epoch after certain power events. The epoch
// shows up in the year-less log as one of these literals depending on the
// unit's configured zone offset.
var rtcResetLiterals = []string{
	"Jan  1 00:00:00",
	"Jan  1 08:00:00",
	"Dec 31 16:00:00",
}

// RTC years outside this range mean the clock was never synced; such
// responses are not usable as anchors.
const (
	minValidRTCYear = 2020
	maxValidRTCYear = 2030
)

var monthsByName = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// deviceStamp is the year-less timestamp parsed off the front of a line.
type deviceStamp struct {
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
	Nanos  int
}

// parseDeviceStamp extracts the year-less timestamp from a log line.
func parseDeviceStamp(line string) (deviceStamp, bool) {
	m := deviceStampPattern.FindStringSubmatch(line)
	if m == nil {
		return deviceStamp{}, false
	}
	month, ok := monthsByName[m[1]]
	if !ok {
		return deviceStamp{}, false
	}

	stamp := deviceStamp{
		Month:  month,
		Day:    atoi(m[2]),
		Hour:   atoi(m[3]),
		Minute: atoi(m[4]),
		Second: atoi(m[5]),
	}
	if m[6] != "" {
		stamp.Nanos = fractionNanos(m[6])
	}
	return stamp, true
}

// parseRTCInfo extracts the absolute RTC timestamp from a query response
// line. Returns false for lines without one or with an unsynced year.
func parseRTCInfo(line string) (time.Time, bool) {
	m := rtcInfoPattern.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}
	year := atoi(m[1])
	if year < minValidRTCYear || year > maxValidRTCYear {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(atoi(m[2])), atoi(m[3]),
		atoi(m[4]), atoi(m[5]), atoi(m[6]), 0, time.UTC), true
}

// isRTCResetLiteral reports whether the line's timestamp is one of the
// known factory-default renderings of the RTC epoch.
func isRTCResetLiteral(line string) bool {
	for _, lit := range rtcResetLiterals {
		if len(line) >= len(lit) && line[:len(lit)] == lit {
			return true
		}
	}
	return false
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

// fractionNanos converts a ".123"-style fraction into nanoseconds.
func fractionNanos(frac string) int {
	digits := frac[1:]
	n := 0
	for i := 0; i < 9; i++ {
		n *= 10
		if i < len(digits) {
			n += int(digits[i] - '0')
		}
	}
	return n
}
