package budget_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearledger/budget-engine/budget"
)

func income(s string) *decimal.Decimal {
	d := budget.MustDecimal(s)
	return &d
}

func TestAccelerationAmount_MissingIncome_IsConfigurationError(t *testing.T) {
	// GIVEN: A user with no monthly income configured
	// WHEN: Computing their acceleration
	// THEN: The calculation refuses with a configuration error naming the
	//       user and the missing setting

	_, err := budget.AccelerationAmount(budget.AccelerationInput{
		UserID:           "user-1",
		MonthlyIncome:    nil,
		SpendableBalance: budget.MustDecimal("500"),
		RemainingInMonth: 15 * 24 * time.Hour,
		LengthOfMonth:    30 * 24 * time.Hour,
	})

	if err == nil {
		t.Fatal("expected an error for missing income")
	}
	if !errors.Is(err, budget.ErrMissingIncome) {
		t.Errorf("error = %v, want ErrMissingIncome", err)
	}
	var cfgErr *budget.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %T, want *ConfigurationError", err)
	}
	if cfgErr.UserID != "user-1" || cfgErr.Setting != "monthly_income" {
		t.Errorf("ConfigurationError = %+v", cfgErr)
	}
}

func TestAccelerationAmount_SurplusCash(t *testing.T) {
	// GIVEN: Income of 2678400 over a 2678400-second month (1/sec) and the
	//        same amount still spendable with only half the month left (2/sec)
	// WHEN: Computing the acceleration
	// THEN: The 1/sec surplus extrapolated over the remaining half month

	got, err := budget.AccelerationAmount(budget.AccelerationInput{
		UserID:           "user-1",
		MonthlyIncome:    income("2678400"),
		SpendableBalance: budget.MustDecimal("2678400"),
		RemainingInMonth: 1339200 * time.Second,
		LengthOfMonth:    2678400 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(budget.MustDecimal("1339200")) {
		t.Errorf("AccelerationAmount = %v, want 1339200", got)
	}
}

func TestAccelerationAmount_DeficitClampsToZero(t *testing.T) {
	// Spending pace below income pace never produces a negative acceleration
	got, err := budget.AccelerationAmount(budget.AccelerationInput{
		UserID:           "user-1",
		MonthlyIncome:    income("3000"),
		SpendableBalance: budget.MustDecimal("10"),
		RemainingInMonth: 15 * 24 * time.Hour,
		LengthOfMonth:    30 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("AccelerationAmount = %v, want 0", got)
	}
}

func TestAccelerationAmount_NeverNegative(t *testing.T) {
	balances := []string{"-5000", "0", "0.01", "100", "999999"}
	for _, b := range balances {
		got, err := budget.AccelerationAmount(budget.AccelerationInput{
			UserID:           "user-1",
			MonthlyIncome:    income("2500"),
			SpendableBalance: budget.MustDecimal(b),
			RemainingInMonth: 7 * 24 * time.Hour,
			LengthOfMonth:    31 * 24 * time.Hour,
		})
		if err != nil {
			t.Fatalf("unexpected error for balance %s: %v", b, err)
		}
		if got.IsNegative() {
			t.Errorf("AccelerationAmount(balance=%s) = %v, want >= 0", b, got)
		}
	}
}

func TestAccelerationAmount_DegenerateDurations(t *testing.T) {
	got, err := budget.AccelerationAmount(budget.AccelerationInput{
		UserID:           "user-1",
		MonthlyIncome:    income("2500"),
		SpendableBalance: budget.MustDecimal("100"),
		RemainingInMonth: 0,
		LengthOfMonth:    0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("AccelerationAmount = %v, want 0", got)
	}
}
