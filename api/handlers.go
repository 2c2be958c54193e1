/*
handlers.go - HTTP API handlers for the budget engine

PURPOSE:
  Exposes the goal accrual engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Goals:
    GET    /api/users/{userID}/goals                    List goals (with live accrual)
    POST   /api/users/{userID}/goals                    Create goal
    GET    /api/users/{userID}/goals/{id}               Get goal
    PUT    /api/users/{userID}/goals/{id}               Update goal (restarts accrual)
    DELETE /api/users/{userID}/goals/{id}               Delete goal
    POST   /api/users/{userID}/goals/resets/{recurrence} Zero accrual for a recurrence

  Envelopes:
    GET/POST       /api/users/{userID}/envelopes
    GET/PUT/DELETE /api/users/{userID}/envelopes/{id}

  Accounts:
    GET/POST       /api/users/{userID}/accounts
    GET/PUT/DELETE /api/users/{userID}/accounts/{id}

  Preferences & reporting:
    GET/PUT /api/users/{userID}/preferences
    GET     /api/users/{userID}/dashboard

  Admin:
    POST   /api/admin/reconcile    Trigger a reconciliation tick now
    POST   /api/admin/reset        Wipe all data (dev only)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Version conflict on optimistic goal update
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/clearledger/budget-engine/budget"
	"github.com/clearledger/budget-engine/jobs"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      budget.TxStore
	Clock      budget.Clock
	Reconciler *jobs.Reconciler
}

// NewHandler creates a new handler with the given store and reconciler.
func NewHandler(store budget.TxStore, clock budget.Clock, rec *jobs.Reconciler) *Handler {
	return &Handler{Store: store, Clock: clock, Reconciler: rec}
}

// =============================================================================
// JSON HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error onto the right HTTP status.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, budget.ErrVersionConflict):
		writeError(w, http.StatusConflict, message, err)
	case budget.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case budget.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func userParam(r *http.Request) budget.UserID {
	return budget.UserID(chi.URLParam(r, "userID"))
}

// calendarFor resolves the user's calendar from their saved timezone.
// Users without saved preferences get UTC.
func (h *Handler) calendarFor(r *http.Request, userID budget.UserID) (budget.Calendar, budget.Settings) {
	settings, err := h.Store.Settings(r.Context(), userID)
	if err != nil {
		settings = budget.Settings{UserID: userID, Timezone: "UTC"}
	}
	cal, err := budget.LoadCalendar(settings.Timezone)
	if err != nil {
		cal = budget.UTCCalendar
	}
	return cal, settings
}

// =============================================================================
// GOAL ENDPOINTS
// =============================================================================

// ListGoals returns all of a user's goals with live accrual figures.
// GET /api/users/{userID}/goals
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	userID := userParam(r)
	goals, err := h.Store.GoalsByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, "Failed to list goals", err)
		return
	}

	cal, _ := h.calendarFor(r, userID)
	now := h.Clock.Now()
	dtos := make([]GoalDTO, 0, len(goals))
	for _, g := range goals {
		dtos = append(dtos, toGoalDTO(g, cal, now))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetGoal returns a single goal.
// GET /api/users/{userID}/goals/{id}
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	userID := userParam(r)
	goal, err := h.Store.GetGoal(r.Context(), userID, budget.GoalID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get goal", err)
		return
	}

	cal, _ := h.calendarFor(r, userID)
	writeJSON(w, http.StatusOK, toGoalDTO(goal, cal, h.Clock.Now()))
}

// CreateGoal creates a new goal. Accrual starts from zero.
// POST /api/users/{userID}/goals
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	userID := userParam(r)
	goal, ok := h.parseGoal(w, r)
	if !ok {
		return
	}
	goal.ID = budget.NewGoalID()
	goal.UserID = userID

	created, err := h.Store.CreateGoal(r.Context(), goal)
	if err != nil {
		writeDomainError(w, "Failed to create goal", err)
		return
	}

	cal, _ := h.calendarFor(r, userID)
	writeJSON(w, http.StatusCreated, toGoalDTO(created, cal, h.Clock.Now()))
}

// UpdateGoal replaces a goal's parameters. Editing a goal restarts its
// accrual: the accumulated amount goes back to zero.
// PUT /api/users/{userID}/goals/{id}
func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	userID := userParam(r)
	goal, ok := h.parseGoal(w, r)
	if !ok {
		return
	}

	existing, err := h.Store.GetGoal(r.Context(), userID, budget.GoalID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get goal", err)
		return
	}

	existing.Name = goal.Name
	existing.Target = goal.Target
	existing.Recurrence = goal.Recurrence
	existing.TargetDate = goal.TargetDate
	existing.AccumulatedAmount = decimal.Zero
	if goal.Version != 0 {
		existing.Version = goal.Version
	}

	updated, err := h.Store.UpdateGoal(r.Context(), existing)
	if err != nil {
		writeDomainError(w, "Failed to update goal", err)
		return
	}

	cal, _ := h.calendarFor(r, userID)
	writeJSON(w, http.StatusOK, toGoalDTO(updated, cal, h.Clock.Now()))
}

// DeleteGoal removes a goal without converting it to an envelope.
// DELETE /api/users/{userID}/goals/{id}
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID := userParam(r)
	if err := h.Store.DeleteGoal(r.Context(), userID, budget.GoalID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete goal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetGoals zeroes the accrual on every goal of the given recurrence.
// POST /api/users/{userID}/goals/resets/{recurrence}
func (h *Handler) ResetGoals(w http.ResponseWriter, r *http.Request) {
	rec, err := budget.ParseRecurrence(chi.URLParam(r, "recurrence"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recurrence", err)
		return
	}

	count, err := h.Reconciler.ResetGoals(r.Context(), userParam(r), rec)
	if err != nil {
		writeDomainError(w, "Failed to reset goals", err)
		return
	}
	writeJSON(w, http.StatusOK, ResetDTO{Reset: count})
}

// parseGoal validates a goal request body. On failure it writes the
// error response and returns ok=false.
func (h *Handler) parseGoal(w http.ResponseWriter, r *http.Request) (budget.Goal, bool) {
	var req GoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return budget.Goal{}, false
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return budget.Goal{}, false
	}
	target, err := decimal.NewFromString(req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target amount", err)
		return budget.Goal{}, false
	}
	rec, err := budget.ParseRecurrence(req.Recurrence)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recurrence", err)
		return budget.Goal{}, false
	}
	targetDate, err := time.Parse(time.RFC3339, req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_date (use RFC3339)", err)
		return budget.Goal{}, false
	}

	return budget.Goal{
		Name:       req.Name,
		Target:     target,
		Recurrence: rec,
		TargetDate: targetDate.UTC(),
		Version:    req.Version,
	}, true
}

// =============================================================================
// ENVELOPE ENDPOINTS
// =============================================================================

// ListEnvelopes returns all of a user's envelopes.
// GET /api/users/{userID}/envelopes
func (h *Handler) ListEnvelopes(w http.ResponseWriter, r *http.Request) {
	envelopes, err := h.Store.EnvelopesByUser(r.Context(), userParam(r))
	if err != nil {
		writeDomainError(w, "Failed to list envelopes", err)
		return
	}
	dtos := make([]EnvelopeDTO, 0, len(envelopes))
	for _, e := range envelopes {
		dtos = append(dtos, toEnvelopeDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEnvelope returns a single envelope.
// GET /api/users/{userID}/envelopes/{id}
func (h *Handler) GetEnvelope(w http.ResponseWriter, r *http.Request) {
	e, err := h.Store.GetEnvelope(r.Context(), userParam(r), budget.EnvelopeID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get envelope", err)
		return
	}
	writeJSON(w, http.StatusOK, toEnvelopeDTO(e))
}

// CreateEnvelope creates a new envelope.
// POST /api/users/{userID}/envelopes
func (h *Handler) CreateEnvelope(w http.ResponseWriter, r *http.Request) {
	name, amount, ok := parseNamedAmount(w, r)
	if !ok {
		return
	}
	created, err := h.Store.CreateEnvelope(r.Context(), budget.Envelope{
		ID:     budget.NewEnvelopeID(),
		UserID: userParam(r),
		Name:   name,
		Amount: amount,
	})
	if err != nil {
		writeDomainError(w, "Failed to create envelope", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEnvelopeDTO(created))
}

// UpdateEnvelope replaces an envelope's name and amount.
// PUT /api/users/{userID}/envelopes/{id}
func (h *Handler) UpdateEnvelope(w http.ResponseWriter, r *http.Request) {
	name, amount, ok := parseNamedAmount(w, r)
	if !ok {
		return
	}
	updated, err := h.Store.UpdateEnvelope(r.Context(), budget.Envelope{
		ID:     budget.EnvelopeID(chi.URLParam(r, "id")),
		UserID: userParam(r),
		Name:   name,
		Amount: amount,
	})
	if err != nil {
		writeDomainError(w, "Failed to update envelope", err)
		return
	}
	writeJSON(w, http.StatusOK, toEnvelopeDTO(updated))
}

// DeleteEnvelope removes an envelope, releasing its amount back into the
// spendable balance.
// DELETE /api/users/{userID}/envelopes/{id}
func (h *Handler) DeleteEnvelope(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteEnvelope(r.Context(), userParam(r), budget.EnvelopeID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete envelope", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ACCOUNT ENDPOINTS
// =============================================================================

// ListAccounts returns all of a user's accounts.
// GET /api/users/{userID}/accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Store.AccountsByUser(r.Context(), userParam(r))
	if err != nil {
		writeDomainError(w, "Failed to list accounts", err)
		return
	}
	dtos := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, toAccountDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAccount returns a single account.
// GET /api/users/{userID}/accounts/{id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := h.Store.GetAccount(r.Context(), userParam(r), budget.AccountID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(a))
}

// CreateAccount creates a new account.
// POST /api/users/{userID}/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	created, err := h.Store.CreateAccount(r.Context(), budget.Account{
		ID:     budget.NewAccountID(),
		UserID: userParam(r),
		Name:   req.Name,
		Amount: amount,
		Debt:   req.Debt,
	})
	if err != nil {
		writeDomainError(w, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(created))
}

// UpdateAccount replaces an account's name, amount and debt flag.
// PUT /api/users/{userID}/accounts/{id}
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	updated, err := h.Store.UpdateAccount(r.Context(), budget.Account{
		ID:     budget.AccountID(chi.URLParam(r, "id")),
		UserID: userParam(r),
		Name:   req.Name,
		Amount: amount,
		Debt:   req.Debt,
	})
	if err != nil {
		writeDomainError(w, "Failed to update account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(updated))
}

// DeleteAccount removes an account.
// DELETE /api/users/{userID}/accounts/{id}
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteAccount(r.Context(), userParam(r), budget.AccountID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseNamedAmount(w http.ResponseWriter, r *http.Request) (string, decimal.Decimal, bool) {
	var req EnvelopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return "", decimal.Zero, false
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return "", decimal.Zero, false
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return "", decimal.Zero, false
	}
	return req.Name, amount, true
}

// =============================================================================
// PREFERENCES & DASHBOARD
// =============================================================================

// GetPreferences returns the user's saved preferences.
// GET /api/users/{userID}/preferences
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Store.Settings(r.Context(), userParam(r))
	if err != nil {
		writeDomainError(w, "Failed to get preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, PreferencesDTO{
		MonthlyIncome: settings.MonthlyIncome,
		Timezone:      settings.Timezone,
		GoalHeader:    string(settings.GoalHeader),
	})
}

// SavePreferences stores the user's preferences.
// PUT /api/users/{userID}/preferences
func (h *Handler) SavePreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	settings := budget.Settings{
		UserID:     userParam(r),
		Timezone:   req.Timezone,
		GoalHeader: budget.GoalHeader(req.GoalHeader),
	}
	if settings.Timezone == "" {
		settings.Timezone = "UTC"
	}
	if settings.GoalHeader == "" {
		settings.GoalHeader = budget.HeaderAccumulated
	}
	if _, err := budget.LoadCalendar(settings.Timezone); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid timezone", err)
		return
	}
	if req.MonthlyIncome != nil {
		income, err := decimal.NewFromString(*req.MonthlyIncome)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid monthly_income", err)
			return
		}
		settings.MonthlyIncome = &income
	}

	if err := h.Store.SaveSettings(r.Context(), settings); err != nil {
		writeDomainError(w, "Failed to save preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, PreferencesDTO{
		MonthlyIncome: settings.MonthlyIncome,
		Timezone:      settings.Timezone,
		GoalHeader:    string(settings.GoalHeader),
	})
}

// GetDashboard summarizes the user's spendable position: what is left,
// what that works out to per day for the rest of the month, and how the
// per-day figure compares with their income spread over the month.
// GET /api/users/{userID}/dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userID := userParam(r)
	ctx := r.Context()
	cal, settings := h.calendarFor(r, userID)
	now := h.Clock.Now()

	remaining, err := h.Store.SpendableBalance(ctx, userID)
	if err != nil {
		writeDomainError(w, "Failed to compute balance", err)
		return
	}
	goals, err := h.Store.GoalsByUser(ctx, userID)
	if err != nil {
		writeDomainError(w, "Failed to list goals", err)
		return
	}

	goalsPerDay := decimal.Zero
	for _, g := range goals {
		goalsPerDay = goalsPerDay.Add(g.AccumulatedPerDay(cal, now))
	}

	income := decimal.Zero
	if settings.MonthlyIncome != nil {
		income = *settings.MonthlyIncome
	}

	// Truncating to whole seconds can yield zero in the last second of the
	// month even though the calendar window is non-empty. Floor both windows
	// at one second so the per-day rates never divide by zero.
	monthWhole := int64(cal.LengthOfMonth(now).Seconds())
	if monthWhole < 1 {
		monthWhole = 1
	}
	remainingWhole := int64(cal.RemainingInMonth(now).Seconds())
	if remainingWhole < 1 {
		remainingWhole = 1
	}

	daySecs := decimal.NewFromInt(86400)
	monthSecs := decimal.NewFromInt(monthWhole)
	remainingSecs := decimal.NewFromInt(remainingWhole)

	incomePerDay := income.Div(monthSecs).Mul(daySecs)
	perDiem := remaining.Div(remainingSecs).Mul(daySecs)

	writeJSON(w, http.StatusOK, DashboardDTO{
		RemainingTotal:         remaining,
		PerDiem:                perDiem,
		PerDiemDiffMonthly:     perDiem.Sub(incomePerDay),
		GoalsAccumulatedPerDay: goalsPerDay,
		RemainingDays:          remainingSecs.Div(daySecs).Round(1).String(),
	})
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// TriggerReconcile runs a reconciliation tick immediately.
// POST /api/admin/reconcile
func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	if err := h.Reconciler.Run(r.Context()); err != nil {
		writeDomainError(w, "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ResetDatabase wipes all data. Development only; stores that do not
// support a wipe report 501.
// POST /api/admin/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	resetter, ok := h.Store.(interface{ Reset(ctx context.Context) error })
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support reset", nil)
		return
	}
	if err := resetter.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
