/*
Package sqlite provides a SQLite-backed implementation of budget.TxStore.

PURPOSE:
  Production persistence for goals, envelopes, accounts, user settings
  and sessions. The same patterns apply to PostgreSQL - only minor SQL
  dialect differences - which is why the engine only ever sees the
  budget.Store interfaces.

KEY TABLES:
  goals:          Savings targets, with an optimistic version column
  envelopes:      Committed spending buckets
  accounts:       Cash/debt accounts (balance computation only)
  user_settings:  Monthly income, timezone, display preference
  sessions:       Authentication sessions (housekeeping job prunes these)

NUMERIC STORAGE:
  Currency amounts are stored as TEXT and parsed back through
  decimal.NewFromString; REAL columns would reintroduce the float drift
  the engine exists to avoid. Timestamps are stored as Unix seconds so
  range comparisons are exact.

CONCURRENCY:
  WAL mode, plus a version column on goals: UPDATE ... WHERE version = ?
  turns a user edit racing the reconciliation job into a visible
  ErrVersionConflict instead of a silent lost write.

USAGE:
  store, err := sqlite.New("./data/budget.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/clearledger/budget-engine/budget"
)

// Store implements budget.TxStore using SQLite.
type Store struct {
	db *sql.DB
	queries
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, queries: queries{db: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS goals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		target TEXT NOT NULL,
		recurrence TEXT NOT NULL,
		target_date INTEGER NOT NULL,
		accumulated_amount TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id);
	CREATE INDEX IF NOT EXISTS idx_goals_target_date ON goals(target_date);

	CREATE TABLE IF NOT EXISTS envelopes (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		amount TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_envelopes_user ON envelopes(user_id);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		debt INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id);

	CREATE TABLE IF NOT EXISTS user_settings (
		user_id TEXT PRIMARY KEY,
		monthly_income TEXT,
		timezone TEXT NOT NULL DEFAULT '',
		goal_header TEXT NOT NULL DEFAULT 'accumulated'
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// WithTx executes fn within a database transaction. An error from fn rolls
// everything back.
func (s *Store) WithTx(ctx context.Context, fn func(budget.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&txStore{queries{db: tx}}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Reset drops all rows. Dev/test helper.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"goals", "envelopes", "accounts", "user_settings", "sessions"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// txStore is the Store view handed to WithTx callbacks.
type txStore struct {
	queries
}

// executor is the subset of *sql.DB / *sql.Tx the queries need.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements every budget.Store method against an executor, so the
// plain store and the transactional view share one implementation.
type queries struct {
	db executor
}

// =============================================================================
// GOALS
// =============================================================================

const goalColumns = "id, user_id, name, target, recurrence, target_date, accumulated_amount, version"

func (q queries) AllGoals(ctx context.Context) ([]budget.Goal, error) {
	return q.queryGoals(ctx, "SELECT "+goalColumns+" FROM goals ORDER BY id")
}

func (q queries) ExpiredGoals(ctx context.Context, now time.Time) ([]budget.Goal, error) {
	return q.queryGoals(ctx,
		"SELECT "+goalColumns+" FROM goals WHERE target_date <= ? ORDER BY id",
		now.Unix())
}

func (q queries) GoalsByUser(ctx context.Context, userID budget.UserID) ([]budget.Goal, error) {
	return q.queryGoals(ctx,
		"SELECT "+goalColumns+" FROM goals WHERE user_id = ? ORDER BY id",
		string(userID))
}

func (q queries) GoalsByUserAndRecurrence(ctx context.Context, userID budget.UserID, rec budget.Recurrence) ([]budget.Goal, error) {
	return q.queryGoals(ctx,
		"SELECT "+goalColumns+" FROM goals WHERE user_id = ? AND recurrence = ? ORDER BY id",
		string(userID), string(rec))
}

func (q queries) GetGoal(ctx context.Context, userID budget.UserID, id budget.GoalID) (budget.Goal, error) {
	goals, err := q.queryGoals(ctx,
		"SELECT "+goalColumns+" FROM goals WHERE id = ? AND user_id = ?",
		string(id), string(userID))
	if err != nil {
		return budget.Goal{}, err
	}
	if len(goals) == 0 {
		return budget.Goal{}, budget.ErrGoalNotFound
	}
	return goals[0], nil
}

func (q queries) CreateGoal(ctx context.Context, g budget.Goal) (budget.Goal, error) {
	if g.ID == "" {
		g.ID = budget.NewGoalID()
	}
	g.AccumulatedAmount = decimal.Zero
	g.Version = 1

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO goals (id, user_id, name, target, recurrence, target_date, accumulated_amount, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(g.ID), string(g.UserID), g.Name, g.Target.String(), string(g.Recurrence),
		g.TargetDate.Unix(), g.AccumulatedAmount.String(), g.Version)
	if err != nil {
		return budget.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	return g, nil
}

func (q queries) UpdateGoal(ctx context.Context, g budget.Goal) (budget.Goal, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE goals
		SET name = ?, target = ?, recurrence = ?, target_date = ?, accumulated_amount = ?, version = version + 1
		WHERE id = ? AND user_id = ? AND version = ?`,
		g.Name, g.Target.String(), string(g.Recurrence), g.TargetDate.Unix(),
		g.AccumulatedAmount.String(), string(g.ID), string(g.UserID), g.Version)
	if err != nil {
		return budget.Goal{}, fmt.Errorf("update goal: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return budget.Goal{}, err
	}
	if affected == 0 {
		var current int64
		row := q.db.QueryRowContext(ctx,
			"SELECT version FROM goals WHERE id = ? AND user_id = ?",
			string(g.ID), string(g.UserID))
		if scanErr := row.Scan(&current); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return budget.Goal{}, budget.ErrGoalNotFound
			}
			return budget.Goal{}, scanErr
		}
		return budget.Goal{}, &budget.VersionConflictError{GoalID: g.ID, Have: g.Version, Want: current}
	}

	g.Version++
	return g, nil
}

func (q queries) DeleteGoal(ctx context.Context, userID budget.UserID, id budget.GoalID) error {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM goals WHERE id = ? AND user_id = ?",
		string(id), string(userID))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return budget.ErrGoalNotFound
	}
	return nil
}

func (q queries) queryGoals(ctx context.Context, query string, args ...any) ([]budget.Goal, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []budget.Goal
	for rows.Next() {
		var (
			g           budget.Goal
			id, userID  string
			target      string
			recurrence  string
			targetDate  int64
			accumulated string
		)
		if err := rows.Scan(&id, &userID, &g.Name, &target, &recurrence, &targetDate, &accumulated, &g.Version); err != nil {
			return nil, err
		}
		g.ID = budget.GoalID(id)
		g.UserID = budget.UserID(userID)
		g.Recurrence = budget.Recurrence(recurrence)
		g.TargetDate = time.Unix(targetDate, 0).UTC()
		if g.Target, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("goal %s: bad target: %w", id, err)
		}
		if g.AccumulatedAmount, err = decimal.NewFromString(accumulated); err != nil {
			return nil, fmt.Errorf("goal %s: bad accumulated amount: %w", id, err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// =============================================================================
// ENVELOPES
// =============================================================================

func (q queries) EnvelopesByUser(ctx context.Context, userID budget.UserID) ([]budget.Envelope, error) {
	return q.queryEnvelopes(ctx,
		"SELECT id, user_id, name, amount FROM envelopes WHERE user_id = ? ORDER BY id",
		string(userID))
}

func (q queries) GetEnvelope(ctx context.Context, userID budget.UserID, id budget.EnvelopeID) (budget.Envelope, error) {
	envelopes, err := q.queryEnvelopes(ctx,
		"SELECT id, user_id, name, amount FROM envelopes WHERE id = ? AND user_id = ?",
		string(id), string(userID))
	if err != nil {
		return budget.Envelope{}, err
	}
	if len(envelopes) == 0 {
		return budget.Envelope{}, budget.ErrEnvelopeNotFound
	}
	return envelopes[0], nil
}

func (q queries) CreateEnvelope(ctx context.Context, e budget.Envelope) (budget.Envelope, error) {
	if e.ID == "" {
		e.ID = budget.NewEnvelopeID()
	}
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO envelopes (id, user_id, name, amount) VALUES (?, ?, ?, ?)",
		string(e.ID), string(e.UserID), e.Name, e.Amount.String())
	if err != nil {
		return budget.Envelope{}, fmt.Errorf("create envelope: %w", err)
	}
	return e, nil
}

func (q queries) UpdateEnvelope(ctx context.Context, e budget.Envelope) (budget.Envelope, error) {
	res, err := q.db.ExecContext(ctx,
		"UPDATE envelopes SET name = ?, amount = ? WHERE id = ? AND user_id = ?",
		e.Name, e.Amount.String(), string(e.ID), string(e.UserID))
	if err != nil {
		return budget.Envelope{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return budget.Envelope{}, budget.ErrEnvelopeNotFound
	}
	return e, nil
}

func (q queries) DeleteEnvelope(ctx context.Context, userID budget.UserID, id budget.EnvelopeID) error {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM envelopes WHERE id = ? AND user_id = ?",
		string(id), string(userID))
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return budget.ErrEnvelopeNotFound
	}
	return nil
}

func (q queries) queryEnvelopes(ctx context.Context, query string, args ...any) ([]budget.Envelope, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var envelopes []budget.Envelope
	for rows.Next() {
		var (
			e          budget.Envelope
			id, userID string
			amount     string
		)
		if err := rows.Scan(&id, &userID, &e.Name, &amount); err != nil {
			return nil, err
		}
		e.ID = budget.EnvelopeID(id)
		e.UserID = budget.UserID(userID)
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("envelope %s: bad amount: %w", id, err)
		}
		envelopes = append(envelopes, e)
	}
	return envelopes, rows.Err()
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (q queries) AccountsByUser(ctx context.Context, userID budget.UserID) ([]budget.Account, error) {
	return q.queryAccounts(ctx,
		"SELECT id, user_id, name, amount, debt FROM accounts WHERE user_id = ? ORDER BY id",
		string(userID))
}

func (q queries) GetAccount(ctx context.Context, userID budget.UserID, id budget.AccountID) (budget.Account, error) {
	accounts, err := q.queryAccounts(ctx,
		"SELECT id, user_id, name, amount, debt FROM accounts WHERE id = ? AND user_id = ?",
		string(id), string(userID))
	if err != nil {
		return budget.Account{}, err
	}
	if len(accounts) == 0 {
		return budget.Account{}, budget.ErrAccountNotFound
	}
	return accounts[0], nil
}

func (q queries) CreateAccount(ctx context.Context, a budget.Account) (budget.Account, error) {
	if a.ID == "" {
		a.ID = budget.NewAccountID()
	}
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO accounts (id, user_id, name, amount, debt) VALUES (?, ?, ?, ?, ?)",
		string(a.ID), string(a.UserID), a.Name, a.Amount.String(), a.Debt)
	if err != nil {
		return budget.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (q queries) UpdateAccount(ctx context.Context, a budget.Account) (budget.Account, error) {
	res, err := q.db.ExecContext(ctx,
		"UPDATE accounts SET name = ?, amount = ?, debt = ? WHERE id = ? AND user_id = ?",
		a.Name, a.Amount.String(), a.Debt, string(a.ID), string(a.UserID))
	if err != nil {
		return budget.Account{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return budget.Account{}, budget.ErrAccountNotFound
	}
	return a, nil
}

func (q queries) DeleteAccount(ctx context.Context, userID budget.UserID, id budget.AccountID) error {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM accounts WHERE id = ? AND user_id = ?",
		string(id), string(userID))
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return budget.ErrAccountNotFound
	}
	return nil
}

func (q queries) queryAccounts(ctx context.Context, query string, args ...any) ([]budget.Account, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []budget.Account
	for rows.Next() {
		var (
			a          budget.Account
			id, userID string
			amount     string
		)
		if err := rows.Scan(&id, &userID, &a.Name, &amount, &a.Debt); err != nil {
			return nil, err
		}
		a.ID = budget.AccountID(id)
		a.UserID = budget.UserID(userID)
		if a.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("account %s: bad amount: %w", id, err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// =============================================================================
// SETTINGS & BALANCE
// =============================================================================

func (q queries) Settings(ctx context.Context, userID budget.UserID) (budget.Settings, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT user_id, monthly_income, timezone, goal_header FROM user_settings WHERE user_id = ?",
		string(userID))

	var (
		s      budget.Settings
		id     string
		income sql.NullString
		header string
	)
	if err := row.Scan(&id, &income, &s.Timezone, &header); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return budget.Settings{}, budget.ErrUserNotFound
		}
		return budget.Settings{}, err
	}
	s.UserID = budget.UserID(id)
	s.GoalHeader = budget.GoalHeader(header)
	if income.Valid {
		d, err := decimal.NewFromString(income.String)
		if err != nil {
			return budget.Settings{}, fmt.Errorf("user %s: bad monthly income: %w", id, err)
		}
		s.MonthlyIncome = &d
	}
	return s, nil
}

func (q queries) SaveSettings(ctx context.Context, s budget.Settings) error {
	var income sql.NullString
	if s.MonthlyIncome != nil {
		income = sql.NullString{String: s.MonthlyIncome.String(), Valid: true}
	}
	header := s.GoalHeader
	if header == "" {
		header = budget.HeaderAccumulated
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, monthly_income, timezone, goal_header)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			monthly_income = excluded.monthly_income,
			timezone = excluded.timezone,
			goal_header = excluded.goal_header`,
		string(s.UserID), income, s.Timezone, string(header))
	return err
}

// SpendableBalance sums in Go rather than SQL: amounts live in TEXT columns
// precisely so no arithmetic happens outside the decimal package.
func (q queries) SpendableBalance(ctx context.Context, userID budget.UserID) (decimal.Decimal, error) {
	total := decimal.Zero

	accounts, err := q.AccountsByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	for _, a := range accounts {
		if a.Debt {
			total = total.Sub(a.Amount)
		} else {
			total = total.Add(a.Amount)
		}
	}

	envelopes, err := q.EnvelopesByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	for _, e := range envelopes {
		total = total.Sub(e.Amount)
	}

	goals, err := q.GoalsByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	for _, g := range goals {
		total = total.Sub(g.AccumulatedAmount)
	}

	return total, nil
}

// =============================================================================
// SESSIONS
// =============================================================================

func (q queries) CreateSession(ctx context.Context, s budget.Session) error {
	if s.ID == "" {
		s.ID = budget.NewSessionID()
	}
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)",
		string(s.ID), string(s.UserID), s.ExpiresAt.Unix())
	return err
}

func (q queries) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at <= ?", now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
