package booking

import (
	"time"
)

// dateFormats are the accepted input layouts, tried in order.
var dateFormats = []string{
	"2006-01-02", // YYYY-MM-DD
	"02/01/2006", // DD/MM/YYYY
	"2006/01/02", // YYYY/MM/DD
}

// ParseDate parses a date string in one of the accepted formats and
// normalizes it to a UTC calendar date.  No range check is applied;
// listings may legitimately reference past dates.
func ParseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, &ValidationError{Reason: "date is required"}
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, &ValidationError{Reason: "unrecognized date format"}
}

// ParseBookingDate parses and normalizes a date like ParseDate and
// additionally rejects dates strictly earlier than today (UTC).  now
// is injectable for tests; it is truncated to its UTC calendar day
// before comparison, so a request dated exactly today passes.  The
// validator is pure computation and never touches shared state.
func ParseBookingDate(raw string, now time.Time) (time.Time, error) {
	day, err := ParseDate(raw)
	if err != nil {
		return time.Time{}, err
	}
	today := now.UTC()
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(today) {
		return time.Time{}, &ValidationError{Reason: "date is in the past"}
	}
	return day, nil
}
