package parse

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// ParseDate reads a YYYY-MM-DD calendar date. A trailing time component
// ("2024-01-15T00:00:00Z", "2024-01-15 00:00:00") is ignored. The result is midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date %q: %w", raw, err)
	}
	return d, nil
}

// Weekday returns the English weekday name of a calendar date.
func Weekday(raw string) (string, error) {
	d, err := ParseDate(raw)
	if err != nil {
		return "", err
	}
	return d.Weekday().String(), nil
}
