package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/clearledger/budget-engine/budget"
)

// SessionSweeper prunes expired authentication sessions. It shares the
// scheduler with the reconciler but no state: the two jobs may run in
// parallel within a tick.
type SessionSweeper struct {
	Store budget.Store
	Clock budget.Clock
}

func NewSessionSweeper(store budget.Store, clock budget.Clock) *SessionSweeper {
	return &SessionSweeper{Store: store, Clock: clock}
}

func (s *SessionSweeper) Name() string { return "sessions" }

func (s *SessionSweeper) Run(ctx context.Context) error {
	now := s.Clock.Now()
	count, err := s.Store.DeleteExpiredSessions(ctx, now)
	if err != nil {
		tickFailures.WithLabelValues(s.Name()).Inc()
		return fmt.Errorf("clear sessions: %w", err)
	}
	if count > 0 {
		log.Printf("[Sessions] deleted %d expired session(s)", count)
	}
	sessionsPruned.Add(float64(count))
	ticksTotal.WithLabelValues(s.Name()).Inc()
	return nil
}
