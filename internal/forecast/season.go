package forecast

import "time"

// Season is an inclusive month range marking the busy season. A range whose
// start is after its end wraps over the new year (e.g. November to February).
type Season struct {
	StartMonth time.Month
	EndMonth   time.Month
}

// Contains reports whether t falls inside the busy season
func (s Season) Contains(t time.Time) bool {
	m := t.Month()
	if s.StartMonth <= s.EndMonth {
		return m >= s.StartMonth && m <= s.EndMonth
	}
	return m >= s.StartMonth || m <= s.EndMonth
}

// Indicator returns 1 inside the busy season and 0 outside
func (s Season) Indicator(t time.Time) float64 {
	if s.Contains(t) {
		return 1
	}
	return 0
}
