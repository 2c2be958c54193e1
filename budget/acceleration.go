/*
acceleration.go - Surplus cash-flow acceleration

PURPOSE:
  Determines how much surplus cash to pull forward into goal accrual
  this cycle. If the user is sitting on more spendable cash per second
  of the remaining month than their monthly income alone would generate,
  that excess - extrapolated across the rest of the month - is offered
  to goals as an acceleration boost. Never negative.

FORMULA:
  spendablePerSecond          = monthlyIncome / lengthOfMonth
  remainingSpendablePerSecond = spendableBalance / remainingInMonth
  acceleration = max(0, remainingSpendablePerSecond - spendablePerSecond)
                 * remainingInMonth
*/
package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccelerationInput carries everything the calculation needs. MonthlyIncome
// comes from user settings and is required; the durations come from the
// Calendar for the user's timezone.
type AccelerationInput struct {
	UserID           UserID
	MonthlyIncome    *decimal.Decimal
	SpendableBalance decimal.Decimal
	RemainingInMonth time.Duration
	LengthOfMonth    time.Duration
}

// AccelerationAmount computes the surplus to pull forward. It fails with a
// ConfigurationError when monthly income is absent, and is zero whenever
// the user's cash pace is at or below their income pace.
func AccelerationAmount(in AccelerationInput) (decimal.Decimal, error) {
	if in.MonthlyIncome == nil {
		return decimal.Zero, &ConfigurationError{UserID: in.UserID, Setting: "monthly_income"}
	}

	monthSeconds := int64(in.LengthOfMonth.Seconds())
	remainingSeconds := int64(in.RemainingInMonth.Seconds())
	if monthSeconds <= 0 || remainingSeconds <= 0 {
		// The calendar contract keeps both positive; degenerate inputs
		// contribute nothing rather than dividing by zero.
		return decimal.Zero, nil
	}

	spendablePerSecond := in.MonthlyIncome.Div(decimal.NewFromInt(monthSeconds))
	remainingPerSecond := in.SpendableBalance.Div(decimal.NewFromInt(remainingSeconds))

	surplus := remainingPerSecond.Sub(spendablePerSecond)
	if surplus.IsNegative() {
		return decimal.Zero, nil
	}
	return surplus.Mul(decimal.NewFromInt(remainingSeconds)), nil
}
