/*
store.go - Persistence interfaces for the budget engine

PURPOSE:
  Defines the boundary between the engine and whatever storage backs it.
  The reconciliation job, the housekeeping job, and the HTTP layer all
  talk through these interfaces; SQLite and in-memory implementations
  exist, and the shapes are deliberately storage-agnostic so a document
  store could implement them too.

SCOPING:
  Per-user reads take a UserID and return only that user's rows - the
  store enforces ownership so the engine never sees another user's data.
  AllGoals and ExpiredGoals are the exception: the reconciliation job is
  a system-wide maintenance pass, not a request handler.

CONCURRENCY:
  Goal updates are optimistic: UpdateGoal compares the Version stamp and
  rejects stale writes with ErrVersionConflict, so a user edit racing a
  reconciliation tick loses loudly instead of silently.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go:  Production SQLite
  - budget/store/memory.go:  In-memory for testing
*/
package budget

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the data-access surface the engine requires.
type Store interface {
	// Goals
	AllGoals(ctx context.Context) ([]Goal, error)
	ExpiredGoals(ctx context.Context, now time.Time) ([]Goal, error)
	GoalsByUser(ctx context.Context, userID UserID) ([]Goal, error)
	GoalsByUserAndRecurrence(ctx context.Context, userID UserID, rec Recurrence) ([]Goal, error)
	GetGoal(ctx context.Context, userID UserID, id GoalID) (Goal, error)
	CreateGoal(ctx context.Context, g Goal) (Goal, error)
	// UpdateGoal replaces the mutable fields (name, target, recurrence,
	// target date, accumulated) if and only if the Version stamp matches.
	UpdateGoal(ctx context.Context, g Goal) (Goal, error)
	DeleteGoal(ctx context.Context, userID UserID, id GoalID) error

	// Envelopes
	EnvelopesByUser(ctx context.Context, userID UserID) ([]Envelope, error)
	GetEnvelope(ctx context.Context, userID UserID, id EnvelopeID) (Envelope, error)
	CreateEnvelope(ctx context.Context, e Envelope) (Envelope, error)
	UpdateEnvelope(ctx context.Context, e Envelope) (Envelope, error)
	DeleteEnvelope(ctx context.Context, userID UserID, id EnvelopeID) error

	// Accounts
	AccountsByUser(ctx context.Context, userID UserID) ([]Account, error)
	GetAccount(ctx context.Context, userID UserID, id AccountID) (Account, error)
	CreateAccount(ctx context.Context, a Account) (Account, error)
	UpdateAccount(ctx context.Context, a Account) (Account, error)
	DeleteAccount(ctx context.Context, userID UserID, id AccountID) error

	// User financial settings
	Settings(ctx context.Context, userID UserID) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error

	// SpendableBalance is the user's total account balance (non-debt minus
	// debt) minus amounts already committed to envelopes and goal accrual.
	SpendableBalance(ctx context.Context, userID UserID) (decimal.Decimal, error)

	// Sessions (housekeeping only)
	CreateSession(ctx context.Context, s Session) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// TxStore wraps Store with transaction support. One reconciliation tick
// runs entirely inside WithTx: fn returning an error rolls everything back.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
