package attendance

import (
	"fmt"
	"strings"

	"attendance-dashboard-backend/internal/parse"
)

// Query narrows a record set. Zero values match everything.
type Query struct {
	Search string // case-insensitive substring of EmpID or EmpName
	Date   string // exact YYYY-MM-DD match
}

// Filter returns the records matching q, in input order.
func Filter(records []Record, q Query) []Record {
	needle := strings.ToLower(q.Search)
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if !matchesSearch(r, needle) {
			continue
		}
		if q.Date != "" && r.Date != q.Date {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesSearch(r Record, needle string) bool {
	if needle == "" {
		return true
	}
	if r.EmpID != "" && strings.Contains(strings.ToLower(r.EmpID), needle) {
		return true
	}
	return r.EmpName != "" && strings.Contains(strings.ToLower(r.EmpName), needle)
}

// DayGroup is the set of records that fall on one weekday.
type DayGroup struct {
	Weekday string   `json:"weekday"`
	Records []Record `json:"records"`
}

// GroupByWeekday partitions records by the weekday name of their date. Groups appear in the
// order their weekday is first seen in the input, not in calendar order.
func GroupByWeekday(records []Record) ([]DayGroup, error) {
	groups := make([]DayGroup, 0, 7)
	index := make(map[string]int, 7)
	for _, r := range records {
		day, err := parse.Weekday(r.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrInvalidRecord, r.ID, err)
		}
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, DayGroup{Weekday: day})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups, nil
}
