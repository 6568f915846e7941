package extract

import (
	"strings"
	"time"
)

// dateLayouts are tried in order. Numeric dates are day-first, as written by
// the supported institutions.
var dateLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"02-Jan-06",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02/01/06",
}

var relativeDays = map[string]int{
	"today":     0,
	"yesterday": -1,
	"ዛሬ":        0,
	"ትናንት":      -1,
	"ትላንት":      -1,
}

// ResolveDate resolves a date string relative to now. Relative words resolve
// to midnight of the matching day in now's location.
func ResolveDate(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(ReplaceEthiopicNumerals(s))
	s = strings.TrimRight(s, ".,;")
	if s == "" {
		return time.Time{}, false
	}

	if offset, ok := relativeDays[strings.ToLower(s)]; ok {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, offset), true
	}

	loc := now.Location()
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsValidDate reports whether t is a usable calendar date
func IsValidDate(t time.Time) bool {
	return !t.IsZero() && t.Year() >= 1900 && t.Year() <= 9999
}
