// internal/orchestrator/dates.go
package orchestrator

import (
	"regexp"
	"strconv"
	"time"
)

var (
	compactDateRe = regexp.MustCompile(`^\d{8}$`)
	isoDateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// genericDateLayouts are tried in order for free-form date input.
var genericDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// FormatDateOfBirth converts a date-of-birth string into the epoch-millis
// value the CRM expects, anchored at midnight UTC of the calendar date.
// Supported inputs are YYYYMMDD, YYYY-MM-DD, and a few common free-form
// layouts. Anything unparseable yields "", never an error: a bad birth date
// must not block account creation.
func FormatDateOfBirth(dateString string) interface{} {
	if dateString == "" {
		return ""
	}

	if compactDateRe.MatchString(dateString) {
		year, _ := strconv.Atoi(dateString[0:4])
		month, _ := strconv.Atoi(dateString[4:6])
		day, _ := strconv.Atoi(dateString[6:8])
		// time.Date normalizes out-of-range components, so "19751350"
		// still yields a timestamp rather than an error.
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).UnixMilli()
	}

	if isoDateRe.MatchString(dateString) {
		t, err := time.Parse("2006-01-02", dateString)
		if err != nil {
			return ""
		}
		return t.UnixMilli()
	}

	for _, layout := range genericDateLayouts {
		t, err := time.Parse(layout, dateString)
		if err != nil {
			continue
		}
		// Normalize to midnight UTC of the parsed calendar date.
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).UnixMilli()
	}

	return ""
}
