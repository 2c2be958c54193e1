/*
calendar.go - Recurrence windows and month-boundary math

PURPOSE:
  Pure date-time computation for the accrual engine, parameterized by a
  timezone. A goal's accrual window runs from WindowStart to its target
  date; the acceleration calculator needs the length of and remaining
  time in the current calendar month.

EDGE CASE POLICY:
  Window starts use TRUE calendar month arithmetic (subtracting one
  month from March 31 clamps to the last day of February, matching how
  humans read "a month before"). Goal rollover on expiry does NOT - it
  uses the fixed-length steps in types.go. The mismatch is intentional
  and pinned by tests.

MONTH BOUNDARY:
  EndOfMonth is the last whole second of the month (23:59:59), so
  RemainingInMonth evaluated at or after that instant would be zero or
  negative (a sub-second clock spends the final fraction of the month
  past it). A non-positive window would divide by zero downstream, so
  it falls through to the end of the NEXT month instead.
*/
package budget

import (
	"fmt"
	"time"
)

// Calendar computes recurrence windows and month boundaries in one timezone.
type Calendar struct {
	Loc *time.Location
}

// UTCCalendar is the default when a user has no timezone configured.
var UTCCalendar = Calendar{Loc: time.UTC}

// LoadCalendar builds a Calendar for an IANA zone name. An empty name means
// UTC. An unrecognized name also yields the UTC calendar, plus an error the
// caller should log; accrual must not stop because one user typo'd a zone.
func LoadCalendar(zone string) (Calendar, error) {
	if zone == "" {
		return UTCCalendar, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return UTCCalendar, fmt.Errorf("load calendar: %w", &TimezoneError{Zone: zone})
	}
	return Calendar{Loc: loc}, nil
}

// =============================================================================
// MONTH BOUNDARIES
// =============================================================================

// StartOfMonth returns midnight on the first of the current month.
func (c Calendar) StartOfMonth(now time.Time) time.Time {
	local := now.In(c.Loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, c.Loc)
}

// EndOfMonth returns the last whole second of the current month (23:59:59).
func (c Calendar) EndOfMonth(now time.Time) time.Time {
	return c.StartOfMonth(now).AddDate(0, 1, 0).Add(-time.Second)
}

// EndOfNextMonth returns the last whole second of the following month.
func (c Calendar) EndOfNextMonth(now time.Time) time.Time {
	return c.StartOfMonth(now).AddDate(0, 2, 0).Add(-time.Second)
}

// LengthOfMonth returns EndOfMonth minus StartOfMonth.
func (c Calendar) LengthOfMonth(now time.Time) time.Duration {
	return c.EndOfMonth(now).Sub(c.StartOfMonth(now))
}

// RemainingInMonth returns the time between now and EndOfMonth. At or past
// the month boundary (EndOfMonth is the last whole second, so a sub-second
// clock spends the final 999ms of the month beyond it) the remainder would
// be zero or negative; it returns the time to the end of the NEXT month
// instead, so downstream per-second rates never divide by a zero-length
// window.
func (c Calendar) RemainingInMonth(now time.Time) time.Duration {
	remaining := c.EndOfMonth(now).Sub(now)
	if remaining <= 0 {
		return c.EndOfNextMonth(now).Sub(now)
	}
	return remaining
}

// =============================================================================
// ACCRUAL WINDOW
// =============================================================================

// WindowStart computes the start of the current accrual window for a goal.
// Never-recurrence goals accrue over the current calendar month; everything
// else accrues over one recurrence unit ending at the target date, using
// true calendar month subtraction for the month-based recurrences.
func (c Calendar) WindowStart(rec Recurrence, targetDate, now time.Time) time.Time {
	target := targetDate.In(c.Loc)
	switch rec {
	case Daily:
		return target.AddDate(0, 0, -1)
	case Weekly:
		return target.AddDate(0, 0, -7)
	case Monthly:
		return addMonthsClamped(target, -1)
	case Quarterly:
		return addMonthsClamped(target, -3)
	case Yearly:
		return addMonthsClamped(target, -12)
	default: // Never
		return c.StartOfMonth(now)
	}
}

// addMonthsClamped shifts t by n calendar months, clamping the day-of-month
// to the last valid day of the destination month. time.AddDate would roll
// March 31 minus one month over to March 3; accrual windows want the last
// day of February.
func addMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	shifted := first.AddDate(0, n, 0)
	last := daysInMonth(shifted.Year(), shifted.Month())
	if day > last {
		day = last
	}
	return time.Date(shifted.Year(), shifted.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
