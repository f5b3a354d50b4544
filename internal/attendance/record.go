// Package attendance holds the read-side logic of the dashboard: filtering, weekday
// grouping and the check-in histogram. Everything here is pure and never mutates its input.
package attendance

import (
	"errors"
	"fmt"
	"strings"

	"attendance-dashboard-backend/internal/parse"
)

// ErrInvalidRecord is returned when a record's date or time of day cannot be parsed.
var ErrInvalidRecord = errors.New("invalid attendance record")

// Record is one employee check-in.
type Record struct {
	ID      int64  `json:"id"`
	EmpID   string `json:"empid"`
	EmpName string `json:"empname"`
	Date    string `json:"Date"` // YYYY-MM-DD
	Time    string `json:"Time"` // HH:MM:SS
}

// NewRecord validates raw field values and returns a Record with the date and time
// normalized to YYYY-MM-DD and HH:MM:SS.
func NewRecord(id int64, empID, empName, date, clock string) (Record, error) {
	d, err := parse.ParseDate(date)
	if err != nil {
		return Record{}, fmt.Errorf("%w: record %d: %v", ErrInvalidRecord, id, err)
	}
	c, err := parse.ParseClock(clock)
	if err != nil {
		return Record{}, fmt.Errorf("%w: record %d: %v", ErrInvalidRecord, id, err)
	}
	return Record{
		ID:      id,
		EmpID:   strings.TrimSpace(empID),
		EmpName: strings.TrimSpace(empName),
		Date:    d.Format(parse.DateLayout),
		Time:    c.String(),
	}, nil
}
