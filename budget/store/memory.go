// Package store provides an in-memory budget.TxStore (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearledger/budget-engine/budget"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	st *state
}

type state struct {
	goals     map[budget.GoalID]budget.Goal
	envelopes map[budget.EnvelopeID]budget.Envelope
	accounts  map[budget.AccountID]budget.Account
	settings  map[budget.UserID]budget.Settings
	sessions  map[budget.SessionID]budget.Session
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

func newState() *state {
	return &state{
		goals:     make(map[budget.GoalID]budget.Goal),
		envelopes: make(map[budget.EnvelopeID]budget.Envelope),
		accounts:  make(map[budget.AccountID]budget.Account),
		settings:  make(map[budget.UserID]budget.Settings),
		sessions:  make(map[budget.SessionID]budget.Session),
	}
}

func (s *state) clone() *state {
	next := newState()
	for k, v := range s.goals {
		next.goals[k] = v
	}
	for k, v := range s.envelopes {
		next.envelopes[k] = v
	}
	for k, v := range s.accounts {
		next.accounts[k] = v
	}
	for k, v := range s.settings {
		next.settings[k] = v
	}
	for k, v := range s.sessions {
		next.sessions[k] = v
	}
	return next
}

// WithTx runs fn against a snapshot-backed view. On error the previous
// state is restored, so a failed tick leaves no partial writes behind.
func (m *Memory) WithTx(_ context.Context, fn func(budget.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	backup := m.st.clone()
	if err := fn(&txView{st: m.st}); err != nil {
		m.st = backup
		return err
	}
	return nil
}

// txView exposes the state as a budget.Store while the Memory lock is held.
type txView struct {
	st *state
}

// =============================================================================
// GOALS
// =============================================================================

func (m *Memory) AllGoals(ctx context.Context) ([]budget.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.allGoals()
}

func (v *txView) AllGoals(context.Context) ([]budget.Goal, error) { return v.st.allGoals() }

func (s *state) allGoals() ([]budget.Goal, error) {
	goals := make([]budget.Goal, 0, len(s.goals))
	for _, g := range s.goals {
		goals = append(goals, g)
	}
	sortGoals(goals)
	return goals, nil
}

func (m *Memory) ExpiredGoals(ctx context.Context, now time.Time) ([]budget.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.expiredGoals(now)
}

func (v *txView) ExpiredGoals(_ context.Context, now time.Time) ([]budget.Goal, error) {
	return v.st.expiredGoals(now)
}

func (s *state) expiredGoals(now time.Time) ([]budget.Goal, error) {
	var goals []budget.Goal
	for _, g := range s.goals {
		if g.IsExpired(now) {
			goals = append(goals, g)
		}
	}
	sortGoals(goals)
	return goals, nil
}

func (m *Memory) GoalsByUser(ctx context.Context, userID budget.UserID) ([]budget.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.goalsByUser(userID, "")
}

func (v *txView) GoalsByUser(_ context.Context, userID budget.UserID) ([]budget.Goal, error) {
	return v.st.goalsByUser(userID, "")
}

func (m *Memory) GoalsByUserAndRecurrence(ctx context.Context, userID budget.UserID, rec budget.Recurrence) ([]budget.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.goalsByUser(userID, rec)
}

func (v *txView) GoalsByUserAndRecurrence(_ context.Context, userID budget.UserID, rec budget.Recurrence) ([]budget.Goal, error) {
	return v.st.goalsByUser(userID, rec)
}

func (s *state) goalsByUser(userID budget.UserID, rec budget.Recurrence) ([]budget.Goal, error) {
	var goals []budget.Goal
	for _, g := range s.goals {
		if g.UserID != userID {
			continue
		}
		if rec != "" && g.Recurrence != rec {
			continue
		}
		goals = append(goals, g)
	}
	sortGoals(goals)
	return goals, nil
}

func (m *Memory) GetGoal(ctx context.Context, userID budget.UserID, id budget.GoalID) (budget.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getGoal(userID, id)
}

func (v *txView) GetGoal(_ context.Context, userID budget.UserID, id budget.GoalID) (budget.Goal, error) {
	return v.st.getGoal(userID, id)
}

func (s *state) getGoal(userID budget.UserID, id budget.GoalID) (budget.Goal, error) {
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return budget.Goal{}, budget.ErrGoalNotFound
	}
	return g, nil
}

func (m *Memory) CreateGoal(ctx context.Context, g budget.Goal) (budget.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createGoal(g)
}

func (v *txView) CreateGoal(_ context.Context, g budget.Goal) (budget.Goal, error) {
	return v.st.createGoal(g)
}

func (s *state) createGoal(g budget.Goal) (budget.Goal, error) {
	if g.ID == "" {
		g.ID = budget.NewGoalID()
	}
	g.AccumulatedAmount = decimal.Zero
	g.Version = 1
	s.goals[g.ID] = g
	return g, nil
}

func (m *Memory) UpdateGoal(ctx context.Context, g budget.Goal) (budget.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateGoal(g)
}

func (v *txView) UpdateGoal(_ context.Context, g budget.Goal) (budget.Goal, error) {
	return v.st.updateGoal(g)
}

func (s *state) updateGoal(g budget.Goal) (budget.Goal, error) {
	existing, ok := s.goals[g.ID]
	if !ok || existing.UserID != g.UserID {
		return budget.Goal{}, budget.ErrGoalNotFound
	}
	if existing.Version != g.Version {
		return budget.Goal{}, &budget.VersionConflictError{
			GoalID: g.ID, Have: g.Version, Want: existing.Version,
		}
	}
	g.Version++
	s.goals[g.ID] = g
	return g, nil
}

func (m *Memory) DeleteGoal(ctx context.Context, userID budget.UserID, id budget.GoalID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.deleteGoal(userID, id)
}

func (v *txView) DeleteGoal(_ context.Context, userID budget.UserID, id budget.GoalID) error {
	return v.st.deleteGoal(userID, id)
}

func (s *state) deleteGoal(userID budget.UserID, id budget.GoalID) error {
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return budget.ErrGoalNotFound
	}
	delete(s.goals, id)
	return nil
}

func sortGoals(goals []budget.Goal) {
	sort.Slice(goals, func(i, j int) bool { return goals[i].ID < goals[j].ID })
}

// =============================================================================
// ENVELOPES
// =============================================================================

func (m *Memory) EnvelopesByUser(ctx context.Context, userID budget.UserID) ([]budget.Envelope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.envelopesByUser(userID)
}

func (v *txView) EnvelopesByUser(_ context.Context, userID budget.UserID) ([]budget.Envelope, error) {
	return v.st.envelopesByUser(userID)
}

func (s *state) envelopesByUser(userID budget.UserID) ([]budget.Envelope, error) {
	var envelopes []budget.Envelope
	for _, e := range s.envelopes {
		if e.UserID == userID {
			envelopes = append(envelopes, e)
		}
	}
	sort.Slice(envelopes, func(i, j int) bool { return envelopes[i].ID < envelopes[j].ID })
	return envelopes, nil
}

func (m *Memory) GetEnvelope(ctx context.Context, userID budget.UserID, id budget.EnvelopeID) (budget.Envelope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getEnvelope(userID, id)
}

func (v *txView) GetEnvelope(_ context.Context, userID budget.UserID, id budget.EnvelopeID) (budget.Envelope, error) {
	return v.st.getEnvelope(userID, id)
}

func (s *state) getEnvelope(userID budget.UserID, id budget.EnvelopeID) (budget.Envelope, error) {
	e, ok := s.envelopes[id]
	if !ok || e.UserID != userID {
		return budget.Envelope{}, budget.ErrEnvelopeNotFound
	}
	return e, nil
}

func (m *Memory) CreateEnvelope(ctx context.Context, e budget.Envelope) (budget.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createEnvelope(e)
}

func (v *txView) CreateEnvelope(_ context.Context, e budget.Envelope) (budget.Envelope, error) {
	return v.st.createEnvelope(e)
}

func (s *state) createEnvelope(e budget.Envelope) (budget.Envelope, error) {
	if e.ID == "" {
		e.ID = budget.NewEnvelopeID()
	}
	s.envelopes[e.ID] = e
	return e, nil
}

func (m *Memory) UpdateEnvelope(ctx context.Context, e budget.Envelope) (budget.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateEnvelope(e)
}

func (v *txView) UpdateEnvelope(_ context.Context, e budget.Envelope) (budget.Envelope, error) {
	return v.st.updateEnvelope(e)
}

func (s *state) updateEnvelope(e budget.Envelope) (budget.Envelope, error) {
	existing, ok := s.envelopes[e.ID]
	if !ok || existing.UserID != e.UserID {
		return budget.Envelope{}, budget.ErrEnvelopeNotFound
	}
	s.envelopes[e.ID] = e
	return e, nil
}

func (m *Memory) DeleteEnvelope(ctx context.Context, userID budget.UserID, id budget.EnvelopeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.deleteEnvelope(userID, id)
}

func (v *txView) DeleteEnvelope(_ context.Context, userID budget.UserID, id budget.EnvelopeID) error {
	return v.st.deleteEnvelope(userID, id)
}

func (s *state) deleteEnvelope(userID budget.UserID, id budget.EnvelopeID) error {
	e, ok := s.envelopes[id]
	if !ok || e.UserID != userID {
		return budget.ErrEnvelopeNotFound
	}
	delete(s.envelopes, id)
	return nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) AccountsByUser(ctx context.Context, userID budget.UserID) ([]budget.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.accountsByUser(userID)
}

func (v *txView) AccountsByUser(_ context.Context, userID budget.UserID) ([]budget.Account, error) {
	return v.st.accountsByUser(userID)
}

func (s *state) accountsByUser(userID budget.UserID) ([]budget.Account, error) {
	var accounts []budget.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (m *Memory) GetAccount(ctx context.Context, userID budget.UserID, id budget.AccountID) (budget.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getAccount(userID, id)
}

func (v *txView) GetAccount(_ context.Context, userID budget.UserID, id budget.AccountID) (budget.Account, error) {
	return v.st.getAccount(userID, id)
}

func (s *state) getAccount(userID budget.UserID, id budget.AccountID) (budget.Account, error) {
	a, ok := s.accounts[id]
	if !ok || a.UserID != userID {
		return budget.Account{}, budget.ErrAccountNotFound
	}
	return a, nil
}

func (m *Memory) CreateAccount(ctx context.Context, a budget.Account) (budget.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createAccount(a)
}

func (v *txView) CreateAccount(_ context.Context, a budget.Account) (budget.Account, error) {
	return v.st.createAccount(a)
}

func (s *state) createAccount(a budget.Account) (budget.Account, error) {
	if a.ID == "" {
		a.ID = budget.NewAccountID()
	}
	s.accounts[a.ID] = a
	return a, nil
}

func (m *Memory) UpdateAccount(ctx context.Context, a budget.Account) (budget.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateAccount(a)
}

func (v *txView) UpdateAccount(_ context.Context, a budget.Account) (budget.Account, error) {
	return v.st.updateAccount(a)
}

func (s *state) updateAccount(a budget.Account) (budget.Account, error) {
	existing, ok := s.accounts[a.ID]
	if !ok || existing.UserID != a.UserID {
		return budget.Account{}, budget.ErrAccountNotFound
	}
	s.accounts[a.ID] = a
	return a, nil
}

func (m *Memory) DeleteAccount(ctx context.Context, userID budget.UserID, id budget.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.deleteAccount(userID, id)
}

func (v *txView) DeleteAccount(_ context.Context, userID budget.UserID, id budget.AccountID) error {
	return v.st.deleteAccount(userID, id)
}

func (s *state) deleteAccount(userID budget.UserID, id budget.AccountID) error {
	a, ok := s.accounts[id]
	if !ok || a.UserID != userID {
		return budget.ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

// =============================================================================
// SETTINGS & BALANCE
// =============================================================================

func (m *Memory) Settings(ctx context.Context, userID budget.UserID) (budget.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getSettings(userID)
}

func (v *txView) Settings(_ context.Context, userID budget.UserID) (budget.Settings, error) {
	return v.st.getSettings(userID)
}

func (s *state) getSettings(userID budget.UserID) (budget.Settings, error) {
	settings, ok := s.settings[userID]
	if !ok {
		return budget.Settings{}, budget.ErrUserNotFound
	}
	return settings, nil
}

func (m *Memory) SaveSettings(ctx context.Context, s budget.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.saveSettings(s)
}

func (v *txView) SaveSettings(_ context.Context, s budget.Settings) error {
	return v.st.saveSettings(s)
}

func (s *state) saveSettings(settings budget.Settings) error {
	s.settings[settings.UserID] = settings
	return nil
}

func (m *Memory) SpendableBalance(ctx context.Context, userID budget.UserID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.spendableBalance(userID)
}

func (v *txView) SpendableBalance(_ context.Context, userID budget.UserID) (decimal.Decimal, error) {
	return v.st.spendableBalance(userID)
}

func (s *state) spendableBalance(userID budget.UserID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range s.accounts {
		if a.UserID != userID {
			continue
		}
		if a.Debt {
			total = total.Sub(a.Amount)
		} else {
			total = total.Add(a.Amount)
		}
	}
	for _, e := range s.envelopes {
		if e.UserID == userID {
			total = total.Sub(e.Amount)
		}
	}
	for _, g := range s.goals {
		if g.UserID == userID {
			total = total.Sub(g.AccumulatedAmount)
		}
	}
	return total, nil
}

// =============================================================================
// SESSIONS
// =============================================================================

func (m *Memory) CreateSession(ctx context.Context, s budget.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createSession(s)
}

func (v *txView) CreateSession(_ context.Context, s budget.Session) error {
	return v.st.createSession(s)
}

func (s *state) createSession(sess budget.Session) error {
	if sess.ID == "" {
		sess.ID = budget.NewSessionID()
	}
	s.sessions[sess.ID] = sess
	return nil
}

func (m *Memory) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.deleteExpiredSessions(now)
}

func (v *txView) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	return v.st.deleteExpiredSessions(now)
}

func (s *state) deleteExpiredSessions(now time.Time) (int64, error) {
	var count int64
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

// SessionCount reports live sessions. For tests.
func (m *Memory) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.st.sessions)
}
