package types

import "time"

// Window bounds a timeframe query. A nil Start means no lower bound.
type Window struct {
	Start *time.Time
	End   time.Time
}

// WindowFor computes the UTC window of tf ending at now.
// Weeks start on Sunday.
func WindowFor(tf Timeframe, now time.Time) Window {
	now = now.UTC()
	y, m, d := now.Date()
	var start time.Time
	switch tf {
	case Daily:
		start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case Weekly:
		start = time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, time.UTC)
	case Monthly:
		start = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	default:
		return Window{End: now}
	}
	return Window{Start: &start, End: now}
}

// Side selects the neighbors of a surround query.
type Side int

const (
	// SideAbove selects players with a strictly greater total.
	SideAbove Side = iota
	// SideBelow selects players with a strictly lesser total.
	SideBelow
)
