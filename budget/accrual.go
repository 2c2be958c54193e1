/*
accrual.go - Linear accrual calculator

PURPOSE:
  Computes how much of a goal's target has accrued as of "now". The
  model is straight-line: the target amount accrues linearly over the
  accrual window (WindowStart .. TargetDate). Before the window the
  accrued amount is zero; at or past the target date it is exactly the
  target, clamped.

NUMERIC SEMANTICS:
  Day and second counts are plain integers - they are not currency.
  Every multiplication or division that touches the target amount goes
  through decimal.Decimal so currency never sees binary float drift.
*/
package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

// WindowStart returns the start of the goal's current accrual window.
func (g Goal) WindowStart(cal Calendar, now time.Time) time.Time {
	return cal.WindowStart(g.Recurrence, g.TargetDate, now)
}

// AccumulatedPerDay returns the linear accrual rate in currency per day.
// Zero outside the window, and zero for a degenerate zero-day window
// rather than dividing by zero.
func (g Goal) AccumulatedPerDay(cal Calendar, now time.Time) decimal.Decimal {
	start := g.WindowStart(cal, now)
	if now.Before(start) || now.After(g.TargetDate) {
		return decimal.Zero
	}

	totalDays := int64(g.TargetDate.Sub(start).Hours() / 24)
	if totalDays == 0 {
		return decimal.Zero
	}
	return g.Target.Div(decimal.NewFromInt(totalDays))
}

// Accumulated returns the linearly accrued amount as of now:
// target * elapsed/total, clamped to [0, target]. At the expiry instant
// the result is exactly the target.
func (g Goal) Accumulated(cal Calendar, now time.Time) decimal.Decimal {
	start := g.WindowStart(cal, now)
	if now.Before(start) {
		return decimal.Zero
	}
	if !now.Before(g.TargetDate) {
		return g.Target
	}

	totalSeconds := int64(g.TargetDate.Sub(start).Seconds())
	if totalSeconds == 0 {
		return g.Target
	}
	elapsedSeconds := int64(now.Sub(start).Seconds())

	return g.Target.
		Div(decimal.NewFromInt(totalSeconds)).
		Mul(decimal.NewFromInt(elapsedSeconds))
}

// IsExpired reports whether now is at or past the target date.
func (g Goal) IsExpired(now time.Time) bool {
	return !now.Before(g.TargetDate)
}

// NextOccurrence returns a copy of the goal rolled into its next cycle:
// target date advanced by the fixed-length step for its recurrence and
// accumulated amount reset to zero. Never-recurrence goals have no next
// cycle; their copy keeps the same target date (callers are expected to
// retire them instead of rolling them).
func (g Goal) NextOccurrence() Goal {
	next := g
	next.AccumulatedAmount = decimal.Zero
	if step, ok := rolloverStep[g.Recurrence]; ok {
		next.TargetDate = g.TargetDate.Add(step)
	}
	return next
}

// Accelerate returns a copy with the acceleration amount added to the
// accumulated total. Deliberately unclamped: accumulation past the target
// means the goal completes early.
func (g Goal) Accelerate(amount decimal.Decimal) Goal {
	next := g
	next.AccumulatedAmount = g.AccumulatedAmount.Add(amount)
	return next
}
