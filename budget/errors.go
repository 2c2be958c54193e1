/*
errors.go - Centralized error types for the budget engine

PURPOSE:
  All error kinds in one place. The calculators return error values (no
  panics); the reconciliation job aborts its transaction on the first
  error it sees, so classification here decides what a tick failure
  looks like in the logs and what the HTTP layer maps to which status.

ERROR CATEGORIES:
  1. Configuration errors - a required user setting is missing/invalid
  2. Lookup errors        - referenced entity does not exist
  3. Concurrency errors   - optimistic version conflict on update
  4. Input errors         - unparseable recurrence, bad amounts
*/
package budget

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingIncome is returned by the acceleration calculator when the
	// user has no monthly income configured. The reconciliation job treats
	// this as fatal for the whole tick.
	ErrMissingIncome = errors.New("monthly income not configured")

	// ErrBadTimezone is returned when a user's timezone string does not
	// parse. Callers fall back to UTC but should log the error.
	ErrBadTimezone = errors.New("unrecognized timezone")

	// ErrUnknownRecurrence is returned for a recurrence string outside the
	// known set.
	ErrUnknownRecurrence = errors.New("unknown recurrence")

	// ErrGoalNotFound is returned when a referenced goal doesn't exist.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrEnvelopeNotFound is returned when a referenced envelope doesn't exist.
	ErrEnvelopeNotFound = errors.New("envelope not found")

	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrUserNotFound is returned when a user has no settings record.
	ErrUserNotFound = errors.New("user not found")

	// ErrVersionConflict is returned when an update carries a stale version
	// stamp. The caller should reload and retry.
	ErrVersionConflict = errors.New("goal modified concurrently")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError identifies which user and which setting blocked a
// calculation.
type ConfigurationError struct {
	UserID  UserID
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("user %s: required setting %q is not configured", e.UserID, e.Setting)
}

func (e *ConfigurationError) Unwrap() error { return ErrMissingIncome }

// TimezoneError records the unparseable zone name.
type TimezoneError struct {
	UserID UserID
	Zone   string
}

func (e *TimezoneError) Error() string {
	return fmt.Sprintf("user %s: timezone %q did not parse, using UTC", e.UserID, e.Zone)
}

func (e *TimezoneError) Unwrap() error { return ErrBadTimezone }

// VersionConflictError reports the stale write.
type VersionConflictError struct {
	GoalID GoalID
	Have   int64
	Want   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("goal %s: version %d is stale (store has %d)", e.GoalID, e.Have, e.Want)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGoalNotFound) ||
		errors.Is(err, ErrEnvelopeNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownRecurrence) ||
		errors.Is(err, ErrMissingIncome) ||
		errors.Is(err, ErrBadTimezone)
}

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
