package attendance

import (
	"fmt"
	"time"

	"attendance-dashboard-backend/internal/parse"
)

const (
	// BucketOffsetMinute is where every bucket boundary sits within its hour.
	BucketOffsetMinute = 20
	// BucketWidth is the span of one histogram bucket.
	BucketWidth = time.Hour
)

// TimeBucket is one bar of the check-in chart.
type TimeBucket struct {
	Label string `json:"time"` // HH:MM start of the bucket
	Count int    `json:"count"`
}

// HistogramOf builds the check-in histogram from the Time field of records.
func HistogramOf(records []Record) ([]TimeBucket, error) {
	times := make([]string, len(records))
	for i, r := range records {
		times[i] = r.Time
	}
	return BuildHistogram(times)
}

// BuildHistogram counts time-of-day samples into hourly buckets aligned to
// HH:20. Every hour between the first and last bucket is present, even when empty.
// Only hour, minute and second are used; no zone conversion happens.
func BuildHistogram(times []string) ([]TimeBucket, error) {
	if len(times) == 0 {
		return []TimeBucket{}, nil
	}

	clocks := make([]parse.Clock, len(times))
	for i, raw := range times {
		c, err := parse.ParseClock(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		clocks[i] = c
	}

	minClock, maxClock := clocks[0], clocks[0]
	for _, c := range clocks[1:] {
		if c.Seconds() < minClock.Seconds() {
			minClock = c
		}
		if c.Seconds() > maxClock.Seconds() {
			maxClock = c
		}
	}

	// Buckets are addressed by hour; the aligned start of bucket h is h:20:00.
	firstHour := minClock.Hour
	lastHour := maxClock.Hour
	if maxClock.Minute > BucketOffsetMinute {
		lastHour++
	}

	buckets := make([]TimeBucket, 0, lastHour-firstHour+1)
	for h := firstHour; h <= lastHour; h++ {
		buckets = append(buckets, TimeBucket{Label: bucketLabel(h)})
	}

	for _, c := range clocks {
		i := c.Hour - firstHour
		if i < 0 || i >= len(buckets) {
			continue
		}
		buckets[i].Count++
	}
	return buckets, nil
}

// bucketLabel formats the start of the bucket for hour h. Hours past 23 wrap onto the next
// day, which only happens to the trailing bucket when the latest sample is after 23:20.
func bucketLabel(h int) string {
	return fmt.Sprintf("%02d:%02d", h%24, BucketOffsetMinute)
}
