package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearledger/budget-engine/budget"
	"github.com/clearledger/budget-engine/budget/store"
	"github.com/clearledger/budget-engine/jobs"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testUser = budget.UserID("user-1")

func utc(year int, month time.Month, day, hour, min, sec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC)
}

// newFixture seeds a user with income configured so acceleration never
// aborts a tick by accident.
func newFixture(t *testing.T, now time.Time) (*store.Memory, *jobs.Reconciler) {
	t.Helper()
	mem := store.NewMemory()

	income := budget.MustDecimal("3000")
	err := mem.SaveSettings(context.Background(), budget.Settings{
		UserID:        testUser,
		MonthlyIncome: &income,
		Timezone:      "UTC",
	})
	require.NoError(t, err)

	return mem, jobs.NewReconciler(mem, budget.FixedClock{At: now})
}

func seedGoal(t *testing.T, mem *store.Memory, rec budget.Recurrence, target string, targetDate time.Time) budget.Goal {
	t.Helper()
	g, err := mem.CreateGoal(context.Background(), budget.Goal{
		UserID:     testUser,
		Name:       "goal-" + string(rec),
		Target:     budget.MustDecimal(target),
		Recurrence: rec,
		TargetDate: targetDate,
	})
	require.NoError(t, err)
	return g
}

// =============================================================================
// ACCRUAL PASS
// =============================================================================

func TestReconcile_AccruesActiveGoals(t *testing.T) {
	// GIVEN: A monthly goal halfway through its accrual window
	// WHEN: A reconciliation tick runs
	// THEN: The stored accumulated amount reflects the linear accrual

	now := utc(2024, time.March, 30, 12, 0, 0)
	mem, rec := newFixture(t, now)
	g := seedGoal(t, mem, budget.Monthly, "1000", utc(2024, time.April, 15, 0, 0, 0))

	require.NoError(t, rec.Run(context.Background()))

	stored, err := mem.GetGoal(context.Background(), testUser, g.ID)
	require.NoError(t, err)
	// Roughly half the target, give or take decimal division rounding
	diff := stored.AccumulatedAmount.Sub(budget.MustDecimal("500")).Abs()
	assert.True(t, diff.LessThan(budget.MustDecimal("0.01")),
		"accumulated = %v, want ~500", stored.AccumulatedAmount)
}

func TestReconcile_AppliesAcceleration(t *testing.T) {
	// GIVEN: A user with a large spendable balance relative to their income
	// WHEN: A tick runs
	// THEN: The goal's accumulated amount exceeds plain linear accrual

	now := utc(2024, time.March, 30, 12, 0, 0)
	mem, rec := newFixture(t, now)

	_, err := mem.CreateAccount(context.Background(), budget.Account{
		UserID: testUser,
		Name:   "checking",
		Amount: budget.MustDecimal("50000"),
	})
	require.NoError(t, err)

	g := seedGoal(t, mem, budget.Monthly, "1000", utc(2024, time.April, 15, 0, 0, 0))

	require.NoError(t, rec.Run(context.Background()))

	stored, err := mem.GetGoal(context.Background(), testUser, g.ID)
	require.NoError(t, err)
	assert.True(t, stored.AccumulatedAmount.GreaterThan(budget.MustDecimal("501")),
		"accumulated = %v, want linear accrual plus a surplus boost", stored.AccumulatedAmount)
}

func TestReconcile_MissingIncome_AbortsWholeTick(t *testing.T) {
	// GIVEN: A user without monthly income and a goal mid-window
	// WHEN: A tick runs
	// THEN: It fails, and NOTHING was written - no partial accrual

	now := utc(2024, time.March, 30, 12, 0, 0)
	mem := store.NewMemory()
	require.NoError(t, mem.SaveSettings(context.Background(), budget.Settings{
		UserID:   testUser,
		Timezone: "UTC",
	}))
	rec := jobs.NewReconciler(mem, budget.FixedClock{At: now})
	g := seedGoal(t, mem, budget.Monthly, "1000", utc(2024, time.April, 15, 0, 0, 0))

	err := rec.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, budget.ErrMissingIncome)

	stored, err := mem.GetGoal(context.Background(), testUser, g.ID)
	require.NoError(t, err)
	assert.True(t, stored.AccumulatedAmount.IsZero(),
		"accumulated = %v, want untouched 0 after rollback", stored.AccumulatedAmount)
	assert.Equal(t, g.Version, stored.Version, "version should not advance on a rolled-back tick")
}

// =============================================================================
// EXPIRY CONVERSION
// =============================================================================

func TestReconcile_ExpiredRecurringGoal_ConvertsAndRolls(t *testing.T) {
	// GIVEN: A weekly goal whose target date has passed
	// WHEN: A tick runs
	// THEN: An envelope for the full target appears and the goal's target
	//       date advances exactly seven days with accrual restarted

	now := utc(2024, time.June, 15, 8, 0, 0)
	mem, rec := newFixture(t, now)
	g := seedGoal(t, mem, budget.Weekly, "300", utc(2024, time.June, 15, 0, 0, 0))

	require.NoError(t, rec.Run(context.Background()))

	envelopes, err := mem.EnvelopesByUser(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, envelopes, 1)
	assert.Equal(t, testUser, envelopes[0].UserID)
	assert.True(t, envelopes[0].Amount.Equal(budget.MustDecimal("300")),
		"envelope amount = %v, want the full target 300", envelopes[0].Amount)

	stored, err := mem.GetGoal(context.Background(), testUser, g.ID)
	require.NoError(t, err)
	assert.True(t, stored.TargetDate.Equal(utc(2024, time.June, 22, 0, 0, 0)),
		"target date = %v, want rolled one week forward", stored.TargetDate)
	assert.True(t, stored.AccumulatedAmount.IsZero(),
		"accumulated = %v, want reset for the new cycle", stored.AccumulatedAmount)
}

func TestReconcile_ExpiredOneTimeGoal_ConvertsOnceAndRetires(t *testing.T) {
	// GIVEN: An expired one-time (never-recurring) goal
	// WHEN: Two adjacent ticks run
	// THEN: Exactly one envelope exists and the goal is gone - the second
	//       tick must not convert it again

	now := utc(2024, time.June, 15, 8, 0, 0)
	mem, rec := newFixture(t, now)
	g := seedGoal(t, mem, budget.Never, "300", utc(2024, time.June, 15, 0, 0, 0))

	require.NoError(t, rec.Run(context.Background()))
	require.NoError(t, rec.Run(context.Background()))

	envelopes, err := mem.EnvelopesByUser(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, envelopes, 1, "adjacent ticks must not duplicate the envelope")
	assert.True(t, envelopes[0].Amount.Equal(budget.MustDecimal("300")))

	_, err = mem.GetGoal(context.Background(), testUser, g.ID)
	assert.ErrorIs(t, err, budget.ErrGoalNotFound, "one-time goal should be retired after conversion")
}

func TestReconcile_AccruesBeforeConverting(t *testing.T) {
	// GIVEN: A goal expiring at this very tick
	// WHEN: The tick runs
	// THEN: The envelope carries the FULL target - accrual ran first and
	//       clamped to the target before conversion looked at the goal

	now := utc(2024, time.June, 15, 0, 0, 0)
	mem, rec := newFixture(t, now)
	seedGoal(t, mem, budget.Never, "450", now)

	require.NoError(t, rec.Run(context.Background()))

	envelopes, err := mem.EnvelopesByUser(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, envelopes, 1)
	assert.True(t, envelopes[0].Amount.Equal(budget.MustDecimal("450")))
}

func TestReconcile_UnexpiredGoalsLeftAlone(t *testing.T) {
	now := utc(2024, time.June, 10, 0, 0, 0)
	mem, rec := newFixture(t, now)
	g := seedGoal(t, mem, budget.Monthly, "1000", utc(2024, time.July, 1, 0, 0, 0))

	require.NoError(t, rec.Run(context.Background()))

	envelopes, err := mem.EnvelopesByUser(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, envelopes)

	stored, err := mem.GetGoal(context.Background(), testUser, g.ID)
	require.NoError(t, err)
	assert.True(t, stored.TargetDate.Equal(g.TargetDate), "target date should be untouched")
}

// =============================================================================
// MANUAL RESETS
// =============================================================================

func TestResetGoals_ScopedToRecurrence(t *testing.T) {
	// GIVEN: Accrued monthly and weekly goals
	// WHEN: Resetting only the monthly ones
	// THEN: Monthly accrual goes to zero, weekly accrual survives

	now := utc(2024, time.June, 10, 0, 0, 0)
	mem, rec := newFixture(t, now)

	monthly := seedGoal(t, mem, budget.Monthly, "1000", utc(2024, time.July, 1, 0, 0, 0))
	weekly := seedGoal(t, mem, budget.Weekly, "200", utc(2024, time.June, 14, 0, 0, 0))
	require.NoError(t, rec.Run(context.Background())) // accrue both

	count, err := rec.ResetGoals(context.Background(), testUser, budget.Monthly)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	m, err := mem.GetGoal(context.Background(), testUser, monthly.ID)
	require.NoError(t, err)
	assert.True(t, m.AccumulatedAmount.IsZero(), "monthly accrual = %v, want 0", m.AccumulatedAmount)

	w, err := mem.GetGoal(context.Background(), testUser, weekly.ID)
	require.NoError(t, err)
	assert.False(t, w.AccumulatedAmount.IsZero(), "weekly accrual should survive a monthly reset")
}

func TestResetGoals_OtherUsersUntouched(t *testing.T) {
	now := utc(2024, time.June, 10, 0, 0, 0)
	mem, rec := newFixture(t, now)
	seedGoal(t, mem, budget.Monthly, "1000", utc(2024, time.July, 1, 0, 0, 0))

	other := budget.UserID("user-2")
	g, err := mem.CreateGoal(context.Background(), budget.Goal{
		UserID:     other,
		Name:       "laptop",
		Target:     budget.MustDecimal("2000"),
		Recurrence: budget.Monthly,
		TargetDate: utc(2024, time.July, 1, 0, 0, 0),
	})
	require.NoError(t, err)

	count, err := rec.ResetGoals(context.Background(), testUser, budget.Monthly)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = mem.GetGoal(context.Background(), other, g.ID)
	require.NoError(t, err)
}
