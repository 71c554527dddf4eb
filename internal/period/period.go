// Package period computes monthly statement periods.
package period

import (
	"fmt"
	"strconv"
	"time"
)

var defaultLoc = time.UTC

// SetDefaultLocation sets the location periods are computed in (fallback UTC).
func SetDefaultLocation(loc *time.Location) {
	if loc != nil {
		defaultLoc = loc
	}
}

func DefaultLocation() *time.Location {
	return defaultLoc
}

// Month is a calendar month in a location.
type Month struct {
	Year  int
	Month time.Month
	Loc   *time.Location
}

// Of returns the month containing t in the default location.
func Of(t time.Time) Month {
	t = t.In(defaultLoc)
	return Month{Year: t.Year(), Month: t.Month(), Loc: defaultLoc}
}

func (m Month) location() *time.Location {
	if m.Loc == nil {
		return defaultLoc
	}
	return m.Loc
}

// Start is the first instant of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, m.location())
}

// End is the last instant of the month, 1ns before the next one starts.
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// Contains reports whether t falls within [Start, End].
func (m Month) Contains(t time.Time) bool {
	t = t.In(m.location())
	return !t.Before(m.Start()) && !t.After(m.End())
}

func (m Month) Previous() Month {
	p := m.Start().AddDate(0, -1, 0)
	return Month{Year: p.Year(), Month: p.Month(), Loc: m.location()}
}

func (m Month) Next() Month {
	n := m.Start().AddDate(0, 1, 0)
	return Month{Year: n.Year(), Month: n.Month(), Loc: m.location()}
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	return m.End().Day()
}

// String formats the month as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Parse accepts YYYY-MM and returns the month in the default location.
func Parse(label string) (Month, error) {
	if len(label) != 7 || label[4] != '-' {
		return Month{}, fmt.Errorf("period must be YYYY-MM")
	}
	year, err := strconv.Atoi(label[:4])
	if err != nil {
		return Month{}, fmt.Errorf("period year must be digits")
	}
	month, err := strconv.Atoi(label[5:])
	if err != nil {
		return Month{}, fmt.Errorf("period month must be digits")
	}
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("period month must be 01..12")
	}
	return Month{Year: year, Month: time.Month(month), Loc: defaultLoc}, nil
}
