package tokens

import "time"

// DefaultResetHour is the local hour at which daily and weekly boundaries fall.
const DefaultResetHour = 12

// Schedule computes reset boundaries and token expiries.
// All methods are pure functions of their arguments.
type Schedule struct {
	loc  *time.Location
	hour int
}

// NewSchedule returns a schedule anchored at hour:00 in loc.
func NewSchedule(loc *time.Location, hour int) Schedule {
	if loc == nil {
		loc = time.Local
	}
	if hour < 0 || hour > 23 {
		hour = DefaultResetHour
	}
	return Schedule{loc: loc, hour: hour}
}

// Location returns the zone the boundaries are evaluated in.
func (s Schedule) Location() *time.Location {
	return s.loc
}

func (s Schedule) boundaryOn(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), s.hour, 0, 0, 0, s.loc)
}

// MostRecentDailyBoundary is today's boundary when t is at or past it, otherwise yesterday's.
func (s Schedule) MostRecentDailyBoundary(t time.Time) time.Time {
	b := s.boundaryOn(t)
	if t.Before(b) {
		return b.AddDate(0, 0, -1)
	}
	return b
}

// IsDailyResetDue reports whether now has crossed a daily boundary later than the one
// that applied at lastReset. An unset lastReset is always due.
func (s Schedule) IsDailyResetDue(now, lastReset time.Time) bool {
	if lastReset.IsZero() {
		return true
	}
	return s.MostRecentDailyBoundary(now).After(s.MostRecentDailyBoundary(lastReset))
}

// NextDailyReset is the first boundary at which a pool reset at lastReset becomes due again.
func (s Schedule) NextDailyReset(lastReset time.Time) time.Time {
	return s.MostRecentDailyBoundary(lastReset).AddDate(0, 0, 1)
}

// NextWeeklyBoundary returns the Monday boundary of the week following t's calendar day.
// A Monday maps to the Monday seven days later.
func (s Schedule) NextWeeklyBoundary(t time.Time) time.Time {
	days := (8 - int(t.In(s.loc).Weekday())) % 7
	if days == 0 {
		days = 7
	}
	return s.boundaryOn(t).AddDate(0, 0, days)
}

// IsWeeklyResetDue reports whether now has reached the Monday boundary that follows
// the day of lastReset. An unset lastReset is always due.
func (s Schedule) IsWeeklyResetDue(now, lastReset time.Time) bool {
	if lastReset.IsZero() {
		return true
	}
	return !now.Before(s.NextWeeklyBoundary(lastReset))
}

// DailyExpiry is the first daily boundary strictly after now.
func (s Schedule) DailyExpiry(now time.Time) time.Time {
	b := s.boundaryOn(now)
	if now.Before(b) {
		return b
	}
	return b.AddDate(0, 0, 1)
}

// WeeklyExpiry is the same day's boundary on a Monday before it, otherwise the next Monday's.
func (s Schedule) WeeklyExpiry(now time.Time) time.Time {
	local := now.In(s.loc)
	if b := s.boundaryOn(now); local.Weekday() == time.Monday && now.Before(b) {
		return b
	}
	return s.NextWeeklyBoundary(now)
}
