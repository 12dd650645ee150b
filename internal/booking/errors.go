// Package booking implements the reservation admission controller:
// request validation, the reserve-then-persist saga against the
// capacity and reservation stores, and compensation on partial
// failure.  Error values here let handlers distinguish a client fault
// (400), a capacity rejection (409), a missing record (404) and a
// transient store failure (503).
package booking

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the referenced record does not exist:
// an experience with no capacity record, or a reservation that was
// already cancelled.
var ErrNotFound = errors.New("record not found")

// ErrUnavailable is returned when a store stayed unreachable across
// the retry budget.  Callers may resubmit with the same idempotency
// key without risking a double booking.
var ErrUnavailable = errors.New("store unavailable")

// ValidationError marks a client fault (malformed or past date,
// missing field).  It is never retried by the server.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// CapacityRejectedError is the business outcome of asking for more
// seats than remain.  Remaining is a hint for the client; it may be
// stale by the time the client reads it.
type CapacityRejectedError struct {
	Remaining int64
}

func (e *CapacityRejectedError) Error() string {
	return fmt.Sprintf("insufficient capacity (remaining %d)", e.Remaining)
}

// InconsistencyError records that compensation itself failed: capacity
// is withheld with no corresponding reservation.  This is the one
// failure mode that can violate the booked-seats invariant, so it is
// never swallowed: the controller logs it and publishes it to the
// reconciliation queue before surfacing the failure.
type InconsistencyError struct {
	ExperienceID uint64
	Seats        int64
	Cause        error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("compensation failed: %d seats withheld on experience %d: %v", e.Seats, e.ExperienceID, e.Cause)
}

func (e *InconsistencyError) Unwrap() error { return e.Cause }
