package domain

import (
	"errors"
	"fmt"
)

// TimeTable is the ordered, non-decreasing list of dates (or stand ages) the
// simulation reports on. Index 0 is the simulation origin. A TimeTable is
// immutable once built.
type TimeTable struct {
	dates []int
}

// ErrEmptyTimeTable is returned when a time table would have no entries.
var ErrEmptyTimeTable = errors.New("time table requires at least one date")

// NewTimeTable validates and copies dates into a TimeTable.
func NewTimeTable(dates []int) (TimeTable, error) {
	if len(dates) == 0 {
		return TimeTable{}, ErrEmptyTimeTable
	}
	for i := 1; i < len(dates); i++ {
		if dates[i] < dates[i-1] {
			return TimeTable{}, fmt.Errorf("time table dates must be non-decreasing: index %d (%d) < index %d (%d)", i, dates[i], i-1, dates[i-1])
		}
	}
	return TimeTable{dates: append([]int(nil), dates...)}, nil
}

// BuildTimeTable returns a table holding the stand dates followed by extension
// dates every step years after the last stand, up to extensionYears later.
func BuildTimeTable(standDates []int, extensionYears, step int) (TimeTable, error) {
	if len(standDates) == 0 {
		return TimeTable{}, ErrEmptyTimeTable
	}
	if extensionYears < 0 {
		return TimeTable{}, fmt.Errorf("extension years must be >= 0, got %d", extensionYears)
	}
	if extensionYears > 0 && step <= 0 {
		return TimeTable{}, fmt.Errorf("extension step must be > 0, got %d", step)
	}
	dates := append([]int(nil), standDates...)
	last := standDates[len(standDates)-1]
	for d := last + step; extensionYears > 0 && d <= last+extensionYears; d += step {
		dates = append(dates, d)
	}
	return NewTimeTable(dates)
}

// Len returns the number of dates.
func (t TimeTable) Len() int { return len(t.dates) }

// Date returns the date at index i.
func (t TimeTable) Date(i int) int { return t.dates[i] }

// Dates returns a copy of the dates.
func (t TimeTable) Dates() []int { return append([]int(nil), t.dates...) }

// Last returns the final date, or zero for an empty table.
func (t TimeTable) Last() int {
	if len(t.dates) == 0 {
		return 0
	}
	return t.dates[len(t.dates)-1]
}

// Step returns the elapsed time between index i-1 and i.
func (t TimeTable) Step(i int) float64 {
	if i <= 0 || i >= len(t.dates) {
		return 0
	}
	return float64(t.dates[i] - t.dates[i-1])
}

// IndexOf returns the first index holding date.
func (t TimeTable) IndexOf(date int) (int, bool) {
	for i, d := range t.dates {
		if d == date {
			return i, true
		}
	}
	return -1, false
}
