package parse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day with no date or zone attached.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock reads "H:M:S" or "H:M". Leading zeros are optional, fractional seconds
// ("08:15:00.123") are truncated.
func ParseClock(raw string) (Clock, error) {
	s := strings.TrimSpace(raw)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return Clock{}, fmt.Errorf("unable to parse time of day: %q", raw)
	}
	if len(parts) == 3 {
		if dot := strings.IndexByte(parts[2], '.'); dot >= 0 {
			parts[2] = parts[2][:dot]
		}
	} else {
		parts = append(parts, "0")
	}

	var fields [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || p == "" || p[0] == '+' || p[0] == '-' {
			return Clock{}, fmt.Errorf("unable to parse time of day: %q", raw)
		}
		fields[i] = n
	}

	c := Clock{Hour: fields[0], Minute: fields[1], Second: fields[2]}
	if c.Hour > 23 || c.Minute > 59 || c.Second > 59 {
		return Clock{}, fmt.Errorf("time of day out of range: %q", raw)
	}
	return c, nil
}

// Seconds returns the offset of c from midnight.
func (c Clock) Seconds() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

// Duration returns the offset of c from midnight.
func (c Clock) Duration() time.Duration {
	return time.Duration(c.Seconds()) * time.Second
}

// String formats c as HH:MM:SS.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}
