/*
Package jobs contains the background maintenance jobs and the scheduler
that owns them.

reconcile.go - the goal reconciliation job

PURPOSE:
  Once per scheduling tick, inside a single store transaction:
    1. For every goal, recompute linear accrual and apply the owner's
       acceleration surplus.
    2. For every goal now past its target date, materialize the target
       into a spending envelope and roll the goal into its next cycle
       (Never-recurrence goals are retired instead - a one-time goal
       has no next cycle).
  Accrual runs before rollover, so a goal expiring mid-tick is accrued
  up to its full target and then converted, never the other way around.

FAILURE SEMANTICS:
  The first error aborts the whole transaction. A missing monthly
  income is such an error; an unparseable timezone is not - that user
  falls back to UTC with a logged warning. The next tick retries from
  a clean state: nothing was committed, so no duplicate envelopes and
  no half-rolled goals.
*/
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearledger/budget-engine/budget"
)

// Reconciler is the per-tick orchestrator for goal accrual and rollover.
type Reconciler struct {
	Store budget.TxStore
	Clock budget.Clock
}

func NewReconciler(store budget.TxStore, clock budget.Clock) *Reconciler {
	return &Reconciler{Store: store, Clock: clock}
}

func (r *Reconciler) Name() string { return "reconcile" }

// Run executes one reconciliation tick.
func (r *Reconciler) Run(ctx context.Context) error {
	now := r.Clock.Now()

	err := r.Store.WithTx(ctx, func(s budget.Store) error {
		if err := r.accrueAll(ctx, s, now); err != nil {
			return err
		}
		return r.convertExpired(ctx, s, now)
	})
	if err != nil {
		tickFailures.WithLabelValues(r.Name()).Inc()
		return fmt.Errorf("reconcile tick at %s: %w", now.Format(time.RFC3339), err)
	}
	ticksTotal.WithLabelValues(r.Name()).Inc()
	return nil
}

// userContext is the per-user state the accrual pass reuses across that
// user's goals: parsed calendar plus the tick's acceleration amount.
type userContext struct {
	cal   budget.Calendar
	accel decimal.Decimal
}

func (r *Reconciler) accrueAll(ctx context.Context, s budget.Store, now time.Time) error {
	goals, err := s.AllGoals(ctx)
	if err != nil {
		return fmt.Errorf("load goals: %w", err)
	}

	users := make(map[budget.UserID]userContext)

	for _, goal := range goals {
		uc, ok := users[goal.UserID]
		if !ok {
			uc, err = r.userContextFor(ctx, s, goal.UserID, now)
			if err != nil {
				return err
			}
			users[goal.UserID] = uc
		}

		updated := goal
		updated.AccumulatedAmount = goal.Accumulated(uc.cal, now)
		updated = updated.Accelerate(uc.accel)

		if _, err := s.UpdateGoal(ctx, updated); err != nil {
			return fmt.Errorf("accrue goal %s: %w", goal.ID, err)
		}
		goalsAccrued.Inc()
	}
	return nil
}

func (r *Reconciler) userContextFor(ctx context.Context, s budget.Store, userID budget.UserID, now time.Time) (userContext, error) {
	settings, err := s.Settings(ctx, userID)
	if err != nil {
		return userContext{}, fmt.Errorf("settings for user %s: %w", userID, err)
	}

	cal, err := budget.LoadCalendar(settings.Timezone)
	if err != nil {
		// UTC fallback; accrual for this user proceeds.
		log.Printf("[Reconcile] %v", err)
	}

	balance, err := s.SpendableBalance(ctx, userID)
	if err != nil {
		return userContext{}, fmt.Errorf("spendable balance for user %s: %w", userID, err)
	}

	accel, err := budget.AccelerationAmount(budget.AccelerationInput{
		UserID:           userID,
		MonthlyIncome:    settings.MonthlyIncome,
		SpendableBalance: balance,
		RemainingInMonth: cal.RemainingInMonth(now),
		LengthOfMonth:    cal.LengthOfMonth(now),
	})
	if err != nil {
		return userContext{}, err
	}

	return userContext{cal: cal, accel: accel}, nil
}

func (r *Reconciler) convertExpired(ctx context.Context, s budget.Store, now time.Time) error {
	expired, err := s.ExpiredGoals(ctx, now)
	if err != nil {
		return fmt.Errorf("load expired goals: %w", err)
	}

	for _, goal := range expired {
		envelope := budget.Envelope{
			UserID: goal.UserID,
			Name:   goal.Name,
			Amount: goal.Target,
		}
		if _, err := s.CreateEnvelope(ctx, envelope); err != nil {
			return fmt.Errorf("create envelope for goal %s: %w", goal.ID, err)
		}
		envelopesConverted.Inc()

		if goal.Recurrence == budget.Never {
			// One-time goal: materialized, then retired. Leaving it in
			// place would convert it again on every tick.
			if err := s.DeleteGoal(ctx, goal.UserID, goal.ID); err != nil {
				return fmt.Errorf("retire goal %s: %w", goal.ID, err)
			}
			continue
		}

		if _, err := s.UpdateGoal(ctx, goal.NextOccurrence()); err != nil {
			return fmt.Errorf("roll goal %s forward: %w", goal.ID, err)
		}
		goalsRolled.Inc()
	}

	if len(expired) > 0 {
		log.Printf("[Reconcile] converted %d expired goal(s) at %s", len(expired), now.Format(time.RFC3339))
	}
	return nil
}

// ResetGoals zeroes the accumulated amount of all of one user's goals with
// the given recurrence, leaving every other goal untouched. This backs the
// explicit "reset my monthly goals now" action; it is independent of expiry
// and runs in its own transaction.
func (r *Reconciler) ResetGoals(ctx context.Context, userID budget.UserID, rec budget.Recurrence) (int, error) {
	count := 0
	err := r.Store.WithTx(ctx, func(s budget.Store) error {
		goals, err := s.GoalsByUserAndRecurrence(ctx, userID, rec)
		if err != nil {
			return err
		}
		for _, goal := range goals {
			goal.AccumulatedAmount = decimal.Zero
			if _, err := s.UpdateGoal(ctx, goal); err != nil {
				return fmt.Errorf("reset goal %s: %w", goal.ID, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
