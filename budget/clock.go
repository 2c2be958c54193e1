package budget

import "time"

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock supplies the current instant. Everything in the engine that needs
// "now" takes a Clock so tests can pin time exactly.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock. Always UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. For tests.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
