package pricing

import "time"

// Season is a named validity window for a price variation, e.g.
// "Winter 2025-26" covering 2025-11-01 through 2026-03-14.  Both endpoints
// are inclusive and compared at day granularity in UTC.
type Season struct {
	Name  string    `json:"season_name"`
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// day truncates a timestamp to midnight UTC so that containment checks
// ignore the time-of-day component of DATETIME columns.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether the travel date falls inside the window,
// endpoints included.
func (s Season) Contains(date time.Time) bool {
	d := day(date)
	return !d.Before(day(s.Start)) && !d.After(day(s.End))
}

// Overlaps reports whether two windows share at least one day.
func (s Season) Overlaps(o Season) bool {
	return !day(s.Start).After(day(o.End)) && !day(o.Start).After(day(s.End))
}
