package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSchedule_MostRecentDailyBoundary(t *testing.T) {
	s := NewSchedule(time.UTC, DefaultResetHour)

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"morning uses yesterday", "2024-03-04T09:00:00", "2024-03-03T12:00:00"},
		{"exact noon uses today", "2024-03-04T12:00:00", "2024-03-04T12:00:00"},
		{"afternoon uses today", "2024-03-04T13:00:00", "2024-03-04T12:00:00"},
		{"just before midnight", "2024-03-04T23:59:59", "2024-03-04T12:00:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, s.MostRecentDailyBoundary(at(tc.in)).Equal(at(tc.want)))
		})
	}
}

func TestSchedule_IsDailyResetDue(t *testing.T) {
	s := NewSchedule(time.UTC, DefaultResetHour)

	cases := []struct {
		name string
		now  string
		last string
		want bool
	}{
		{"same morning", "2024-03-04T11:59:59", "2024-03-04T09:00:00", false},
		{"crossed noon", "2024-03-04T13:00:00", "2024-03-04T09:00:00", true},
		{"exactly at noon", "2024-03-04T12:00:00", "2024-03-04T09:00:00", true},
		{"reset at noon then afternoon", "2024-03-04T18:00:00", "2024-03-04T12:00:00", false},
		{"afternoon to next morning", "2024-03-05T09:00:00", "2024-03-04T13:00:00", false},
		{"afternoon to next afternoon", "2024-03-05T12:30:00", "2024-03-04T13:00:00", true},
		{"several days later", "2024-03-09T08:00:00", "2024-03-04T13:00:00", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, s.IsDailyResetDue(at(tc.now), at(tc.last)))
		})
	}
}

func TestSchedule_UnsetLastResetIsAlwaysDue(t *testing.T) {
	s := NewSchedule(time.UTC, DefaultResetHour)
	now := at("2024-03-04T09:00:00")

	assert.True(t, s.IsDailyResetDue(now, time.Time{}))
	assert.True(t, s.IsWeeklyResetDue(now, time.Time{}))
}

func TestSchedule_IsWeeklyResetDue(t *testing.T) {
	s := NewSchedule(time.UTC, DefaultResetHour)

	cases := []struct {
		name string
		now  string
		last string
		want bool
	}{
		{"monday morning reset, same afternoon", "2024-03-04T13:00:00", "2024-03-04T09:00:00", false},
		{"monday reset, sunday later", "2024-03-10T23:00:00", "2024-03-04T09:00:00", false},
		{"monday reset, following monday noon", "2024-03-11T12:00:00", "2024-03-04T09:00:00", true},
		{"wednesday reset, monday morning", "2024-03-11T11:00:00", "2024-03-06T10:00:00", false},
		{"wednesday reset, monday afternoon", "2024-03-11T12:30:00", "2024-03-06T10:00:00", true},
		{"sunday reset, monday noon", "2024-03-11T12:00:00", "2024-03-10T20:00:00", true},
		{"weeks later", "2024-04-02T08:00:00", "2024-03-06T10:00:00", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, s.IsWeeklyResetDue(at(tc.now), at(tc.last)))
		})
	}
}

func TestSchedule_Expiries(t *testing.T) {
	s := NewSchedule(time.UTC, DefaultResetHour)

	daily := []struct{ now, want string }{
		{"2024-03-04T09:00:00", "2024-03-04T12:00:00"},
		{"2024-03-04T12:00:00", "2024-03-05T12:00:00"},
		{"2024-03-04T13:00:00", "2024-03-05T12:00:00"},
		{"2024-03-31T23:00:00", "2024-04-01T12:00:00"},
	}
	for _, tc := range daily {
		assert.True(t, s.DailyExpiry(at(tc.now)).Equal(at(tc.want)), "daily expiry for %s", tc.now)
	}

	weekly := []struct{ now, want string }{
		{"2024-03-04T09:00:00", "2024-03-04T12:00:00"},
		{"2024-03-04T12:00:00", "2024-03-11T12:00:00"},
		{"2024-03-04T13:00:00", "2024-03-11T12:00:00"},
		{"2024-03-06T10:00:00", "2024-03-11T12:00:00"},
		{"2024-03-10T23:59:00", "2024-03-11T12:00:00"},
	}
	for _, tc := range weekly {
		assert.True(t, s.WeeklyExpiry(at(tc.now)).Equal(at(tc.want)), "weekly expiry for %s", tc.now)
	}
}

func TestSchedule_HonoursLocation(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	s := NewSchedule(berlin, DefaultResetHour)

	// 11:30 UTC is 12:30 in CET, past the local boundary.
	now := time.Date(2024, 3, 4, 11, 30, 0, 0, time.UTC)
	want := time.Date(2024, 3, 5, 12, 0, 0, 0, berlin)

	assert.True(t, s.DailyExpiry(now).Equal(want))
	assert.Equal(t, berlin, s.Location())
}

func TestNewSchedule_Defaults(t *testing.T) {
	s := NewSchedule(nil, 99)
	assert.Equal(t, time.Local, s.Location())
	assert.Equal(t, DefaultResetHour, s.hour)
}

func TestSchedule_NextDailyResetMatchesDue(t *testing.T) {
	s := NewSchedule(time.UTC, DefaultResetHour)
	for _, last := range []string{"2024-03-04T09:00:00", "2024-03-04T12:00:00", "2024-03-04T18:30:00"} {
		next := s.NextDailyReset(at(last))
		assert.False(t, s.IsDailyResetDue(next.Add(-time.Second), at(last)), last)
		assert.True(t, s.IsDailyResetDue(next, at(last)), last)
	}
}
