package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearledger/budget-engine/budget"
	"github.com/clearledger/budget-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testUser = budget.UserID("user-1")

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func utc(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func seedGoal(t *testing.T, s *sqlite.Store, rec budget.Recurrence, target string, targetDate time.Time) budget.Goal {
	t.Helper()
	g, err := s.CreateGoal(context.Background(), budget.Goal{
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
// GOAL PERSISTENCE
// =============================================================================

func TestGoal_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	g := seedGoal(t, store, budget.Monthly, "1234.56", utc(2024, time.July, 1))

	loaded, err := store.GetGoal(ctx, testUser, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Name, loaded.Name)
	assert.True(t, loaded.Target.Equal(budget.MustDecimal("1234.56")))
	assert.Equal(t, budget.Monthly, loaded.Recurrence)
	assert.True(t, loaded.TargetDate.Equal(utc(2024, time.July, 1)))
	assert.True(t, loaded.AccumulatedAmount.IsZero(), "accrual starts from zero")
	assert.Equal(t, int64(1), loaded.Version)
}

func TestGoal_ScopedToOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	g := seedGoal(t, store, budget.Monthly, "100", utc(2024, time.July, 1))

	_, err := store.GetGoal(ctx, "someone-else", g.ID)
	assert.ErrorIs(t, err, budget.ErrGoalNotFound)

	err = store.DeleteGoal(ctx, "someone-else", g.ID)
	assert.ErrorIs(t, err, budget.ErrGoalNotFound)
}

func TestGoal_VersionedUpdate(t *testing.T) {
	// GIVEN: A stored goal at version 1
	// WHEN: Two writers race with the same version stamp
	// THEN: The first write wins and bumps the version; the second is
	//       rejected with a version conflict

	store := newTestStore(t)
	ctx := context.Background()

	g := seedGoal(t, store, budget.Monthly, "100", utc(2024, time.July, 1))

	first := g
	first.AccumulatedAmount = budget.MustDecimal("10")
	updated, err := store.UpdateGoal(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	second := g // still carries version 1
	second.AccumulatedAmount = budget.MustDecimal("20")
	_, err = store.UpdateGoal(ctx, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, budget.ErrVersionConflict)

	var conflict *budget.VersionConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(1), conflict.Have)
	assert.Equal(t, int64(2), conflict.Want)

	// The losing write changed nothing
	loaded, err := store.GetGoal(ctx, testUser, g.ID)
	require.NoError(t, err)
	assert.True(t, loaded.AccumulatedAmount.Equal(budget.MustDecimal("10")))
}

func TestExpiredGoals_RangeQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	past := seedGoal(t, store, budget.Weekly, "100", utc(2024, time.June, 10))
	atNow := seedGoal(t, store, budget.Never, "200", utc(2024, time.June, 15))
	seedGoal(t, store, budget.Monthly, "300", utc(2024, time.July, 1))

	expired, err := store.ExpiredGoals(ctx, utc(2024, time.June, 15))
	require.NoError(t, err)
	require.Len(t, expired, 2, "the boundary instant counts as expired")

	ids := []budget.GoalID{expired[0].ID, expired[1].ID}
	assert.Contains(t, ids, past.ID)
	assert.Contains(t, ids, atNow.ID)
}

func TestGoalsByUserAndRecurrence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedGoal(t, store, budget.Monthly, "100", utc(2024, time.July, 1))
	seedGoal(t, store, budget.Weekly, "50", utc(2024, time.June, 20))

	monthly, err := store.GoalsByUserAndRecurrence(ctx, testUser, budget.Monthly)
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	assert.Equal(t, budget.Monthly, monthly[0].Recurrence)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that writes an envelope and then fails
	// WHEN: WithTx returns
	// THEN: The envelope is gone - nothing from the transaction committed

	store := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s budget.Store) error {
		_, err := s.CreateEnvelope(ctx, budget.Envelope{
			UserID: testUser,
			Name:   "doomed",
			Amount: budget.MustDecimal("10"),
		})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	envelopes, err := store.EnvelopesByUser(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, envelopes)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s budget.Store) error {
		_, err := s.CreateEnvelope(ctx, budget.Envelope{
			UserID: testUser,
			Name:   "kept",
			Amount: budget.MustDecimal("10"),
		})
		return err
	})
	require.NoError(t, err)

	envelopes, err := store.EnvelopesByUser(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, envelopes, 1)
	assert.Equal(t, "kept", envelopes[0].Name)
}

// =============================================================================
// BALANCE & SETTINGS
// =============================================================================

func TestSpendableBalance(t *testing.T) {
	// GIVEN: 1000 cash, 200 debt, 150 committed to an envelope, and a
	//        goal that has accrued 100
	// WHEN: Computing the spendable balance
	// THEN: 1000 - 200 - 150 - 100 = 550

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, budget.Account{UserID: testUser, Name: "checking", Amount: budget.MustDecimal("1000")})
	require.NoError(t, err)
	_, err = store.CreateAccount(ctx, budget.Account{UserID: testUser, Name: "visa", Amount: budget.MustDecimal("200"), Debt: true})
	require.NoError(t, err)
	_, err = store.CreateEnvelope(ctx, budget.Envelope{UserID: testUser, Name: "vacation", Amount: budget.MustDecimal("150")})
	require.NoError(t, err)

	g := seedGoal(t, store, budget.Monthly, "500", utc(2024, time.July, 1))
	g.AccumulatedAmount = budget.MustDecimal("100")
	_, err = store.UpdateGoal(ctx, g)
	require.NoError(t, err)

	balance, err := store.SpendableBalance(ctx, testUser)
	require.NoError(t, err)
	assert.True(t, balance.Equal(budget.MustDecimal("550")), "balance = %v, want 550", balance)
}

func TestSettings_RoundTripAndUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Settings(ctx, testUser)
	assert.ErrorIs(t, err, budget.ErrUserNotFound)

	income := budget.MustDecimal("3000")
	require.NoError(t, store.SaveSettings(ctx, budget.Settings{
		UserID:        testUser,
		MonthlyIncome: &income,
		Timezone:      "Europe/Paris",
		GoalHeader:    budget.HeaderPerDay,
	}))

	loaded, err := store.Settings(ctx, testUser)
	require.NoError(t, err)
	require.NotNil(t, loaded.MonthlyIncome)
	assert.True(t, loaded.MonthlyIncome.Equal(income))
	assert.Equal(t, "Europe/Paris", loaded.Timezone)
	assert.Equal(t, budget.HeaderPerDay, loaded.GoalHeader)

	// Saving again replaces, and a nil income round-trips as NULL
	require.NoError(t, store.SaveSettings(ctx, budget.Settings{
		UserID:   testUser,
		Timezone: "UTC",
	}))
	loaded, err = store.Settings(ctx, testUser)
	require.NoError(t, err)
	assert.Nil(t, loaded.MonthlyIncome)
	assert.Equal(t, "UTC", loaded.Timezone)
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestSessions_SweepExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := utc(2024, time.June, 15)

	require.NoError(t, store.CreateSession(ctx, budget.Session{
		ID: budget.NewSessionID(), UserID: testUser, ExpiresAt: now.Add(-time.Minute),
	}))
	require.NoError(t, store.CreateSession(ctx, budget.Session{
		ID: budget.NewSessionID(), UserID: testUser, ExpiresAt: now, // boundary
	}))
	require.NoError(t, store.CreateSession(ctx, budget.Session{
		ID: budget.NewSessionID(), UserID: testUser, ExpiresAt: now.Add(time.Hour),
	}))

	count, err := store.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "expiry at the sweep instant counts as expired")
}
