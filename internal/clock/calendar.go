// Package clock resolves "now" in the household's civil timezone and
// computes the day and week boundaries that drive resets.
package clock

import (
	"fmt"
	"time"

	_ "time/tzdata"
)

// DefaultTimezone is the civil zone used when none is configured.
const DefaultTimezone = "America/Los_Angeles"

// DateLayout is the YYYY-MM-DD form used for week starts and daily buckets.
const DateLayout = "2006-01-02"

// Calendar does all boundary math in one fixed location so every device in
// the household sees the same day and week transitions.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// New returns a calendar for the named IANA zone.
func New(tz string) (*Calendar, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &Calendar{loc: loc, now: time.Now}, nil
}

// Fixed returns a calendar whose clock always reads t. Used by tests and
// one-shot commands that need a stable instant.
func Fixed(loc *time.Location, t time.Time) *Calendar {
	return &Calendar{loc: loc, now: func() time.Time { return t }}
}

// WithNow returns a copy of c that reads time from fn.
func (c *Calendar) WithNow(fn func() time.Time) *Calendar {
	return &Calendar{loc: c.loc, now: fn}
}

func (c *Calendar) Location() *time.Location { return c.loc }

// Now is the current instant expressed in the civil zone.
func (c *Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

// MidnightToday is 00:00 of the current civil day.
func (c *Calendar) MidnightToday() time.Time {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
}

// Today is the current civil date as YYYY-MM-DD.
func (c *Calendar) Today() string {
	return c.Now().Format(DateLayout)
}

// WeekStart is the most recent Sunday at local midnight (today, if today
// is Sunday).
func (c *Calendar) WeekStart() time.Time {
	midnight := c.MidnightToday()
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}

// WeekStartDate is WeekStart as YYYY-MM-DD.
func (c *Calendar) WeekStartDate() string {
	return c.WeekStart().Format(DateLayout)
}

// WeekRange returns the current week's first and last instants; the end is
// Saturday 23:59:59.999.
func (c *Calendar) WeekRange() (time.Time, time.Time) {
	start := c.WeekStart()
	end := start.AddDate(0, 0, 7).Add(-time.Millisecond)
	return start, end
}

// WeekRangeDisplay renders the current week as "Jan 26 - Feb 1".
func (c *Calendar) WeekRangeDisplay() string {
	start, end := c.WeekRange()
	return start.Format("Jan 2") + " - " + end.Format("Jan 2")
}

// ShouldResetDaily reports whether a civil midnight has passed since last.
// A zero last means no reset has ever happened.
func (c *Calendar) ShouldResetDaily(last time.Time) bool {
	if last.IsZero() {
		return true
	}
	return last.Before(c.MidnightToday())
}

// ShouldResetWeekly reports whether weekStart differs from the current
// week's start date. An empty weekStart is always due.
func (c *Calendar) ShouldResetWeekly(weekStart string) bool {
	if weekStart == "" {
		return true
	}
	return weekStart != c.WeekStartDate()
}
