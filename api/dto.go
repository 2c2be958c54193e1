/*
dto.go - Request and response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with clients. Domain types live in
  the budget package; these DTOs decouple the wire format from them.

CONVENTIONS:
  - Money travels as strings on input (parsed into decimal.Decimal) and
    as decimal JSON on output.
  - Timestamps are RFC3339.
  - Goal versions are surfaced so clients can do optimistic updates.

SEE ALSO:
  - handlers.go: Handler implementations using these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearledger/budget-engine/budget"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// GoalRequest is the body for creating or updating a goal.
type GoalRequest struct {
	Name       string `json:"name"`
	Target     string `json:"target"`
	Recurrence string `json:"recurrence"`
	TargetDate string `json:"target_date"` // RFC3339
	Version    int64  `json:"version,omitempty"`
}

// EnvelopeRequest is the body for creating or updating an envelope.
type EnvelopeRequest struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

// AccountRequest is the body for creating or updating an account.
type AccountRequest struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Debt   bool   `json:"debt"`
}

// PreferencesRequest is the body for saving user preferences.
type PreferencesRequest struct {
	MonthlyIncome *string `json:"monthly_income"`
	Timezone      string  `json:"timezone"`
	GoalHeader    string  `json:"goal_header"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// GoalDTO is a goal enriched with its live accrual figures.
type GoalDTO struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Target            decimal.Decimal `json:"target"`
	Recurrence        string          `json:"recurrence"`
	TargetDate        time.Time       `json:"target_date"`
	AccumulatedAmount decimal.Decimal `json:"accumulated_amount"`
	Accumulated       decimal.Decimal `json:"accumulated"`
	PerDay            decimal.Decimal `json:"per_day"`
	Expired           bool            `json:"expired"`
	Version           int64           `json:"version"`
}

func toGoalDTO(g budget.Goal, cal budget.Calendar, now time.Time) GoalDTO {
	return GoalDTO{
		ID:                string(g.ID),
		Name:              g.Name,
		Target:            g.Target,
		Recurrence:        string(g.Recurrence),
		TargetDate:        g.TargetDate,
		AccumulatedAmount: g.AccumulatedAmount,
		Accumulated:       g.Accumulated(cal, now),
		PerDay:            g.AccumulatedPerDay(cal, now),
		Expired:           g.IsExpired(now),
		Version:           g.Version,
	}
}

// EnvelopeDTO is the wire form of an envelope.
type EnvelopeDTO struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

func toEnvelopeDTO(e budget.Envelope) EnvelopeDTO {
	return EnvelopeDTO{ID: string(e.ID), Name: e.Name, Amount: e.Amount}
}

// AccountDTO is the wire form of an account.
type AccountDTO struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Debt   bool            `json:"debt"`
}

func toAccountDTO(a budget.Account) AccountDTO {
	return AccountDTO{ID: string(a.ID), Name: a.Name, Amount: a.Amount, Debt: a.Debt}
}

// PreferencesDTO is the wire form of user preferences.
type PreferencesDTO struct {
	MonthlyIncome *decimal.Decimal `json:"monthly_income"`
	Timezone      string           `json:"timezone"`
	GoalHeader    string           `json:"goal_header"`
}

// DashboardDTO summarizes the spendable position for the current month.
type DashboardDTO struct {
	RemainingTotal         decimal.Decimal `json:"remaining_total"`
	PerDiem                decimal.Decimal `json:"per_diem"`
	PerDiemDiffMonthly     decimal.Decimal `json:"per_diem_diff_monthly"`
	GoalsAccumulatedPerDay decimal.Decimal `json:"goals_accumulated_per_day"`
	RemainingDays          string          `json:"remaining_days"`
}

// ResetDTO reports how many goals a reset touched.
type ResetDTO struct {
	Reset int `json:"reset"`
}

// ErrorResponse is the standard error shape.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
