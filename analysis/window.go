package analysis

import (
	"time"
)

// Window is the date range flight rows are loaded for. It always spans at
// least 12 calendar months so the classifier sees a full seasonal cycle.
type Window struct {
	Start time.Time
	End   time.Time
}

const narrowWindowDays = 180

// ExpandWindow widens the user's window to analysis scale.
//
// A narrow window (under 180 days, including the single-date and missing
// cases) becomes 12 calendar months centered roughly on the user's start,
// clamped so it reaches at most 12 months into the past. A wide window keeps
// the user's bounds but extends the end to the later of end+90 days and
// end-of-month+6 months, and pulls the start 14 days back.
func ExpandWindow(userStart, userEnd *time.Time, now time.Time) Window {
	today := midnightUTC(now)

	start := today
	if userStart != nil {
		start = midnightUTC(*userStart)
	}
	end := start
	if userEnd != nil {
		end = midnightUTC(*userEnd)
	}
	if end.Before(start) {
		end = start
	}

	if end.Sub(start) < narrowWindowDays*24*time.Hour {
		// Center a 12-month span on the user's start.
		expandedStart := startOfMonth(start).AddDate(0, -5, 0)
		floor := startOfMonth(today).AddDate(0, -12, 0)
		if expandedStart.Before(floor) {
			expandedStart = floor
		}
		expandedEnd := expandedStart.AddDate(0, 12, -1)
		anchorEnd := endOfMonth(start).AddDate(0, 6, 0)
		if expandedEnd.Before(anchorEnd) {
			expandedEnd = anchorEnd
		}
		return Window{Start: expandedStart, End: expandedEnd}
	}

	extendedEnd := end.AddDate(0, 0, 90)
	monthEnd := endOfMonth(end).AddDate(0, 6, 0)
	if monthEnd.After(extendedEnd) {
		extendedEnd = monthEnd
	}
	return Window{Start: start.AddDate(0, 0, -14), End: extendedEnd}
}

// ResolveAnchor returns the date comparisons and the chart center on: the
// user-selected date when present, otherwise the system recommendation.
func ResolveAnchor(userSelected *time.Time, recommended time.Time) time.Time {
	if userSelected != nil {
		return midnightUTC(*userSelected)
	}
	return midnightUTC(recommended)
}

func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func endOfMonth(t time.Time) time.Time {
	return startOfMonth(t).AddDate(0, 1, -1)
}
