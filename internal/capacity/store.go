// Package capacity implements the capacity ledger: the protocol that
// reserves seats against an experience's finite capacity with
// all-or-nothing semantics under arbitrary concurrency.  The only
// primitives assumed of the underlying store are a read and an atomic
// conditional update; a plain read-modify-write sequence is never used
// because the read and write would be separate network round trips and
// two concurrent callers could both observe enough remaining capacity.
package capacity

import (
	"context"
	"errors"
)

// Record is the capacity state of a single experience as held by the
// capacity store.  Remaining is monotonically non-increasing except
// when a cancellation or compensation releases seats.
type Record struct {
	Total     int64 `json:"capacity_total"`
	Remaining int64 `json:"capacity_remaining"`
}

// ErrInsufficient is returned by ConditionalDecrement when the store's
// precondition (remaining >= n) does not hold.  This is a business
// outcome, not a fault, and is never retried.
var ErrInsufficient = errors.New("insufficient capacity")

// ErrNotFound is returned when no capacity record exists for the
// experience, for example because the experience was deleted.
var ErrNotFound = errors.New("capacity record not found")

// Store is the contract the ledger requires of a capacity store.  The
// implementation must make ConditionalDecrement atomic with respect to
// concurrent callers across processes: two successful decrements may
// never drive remaining below zero.  Any error other than the
// sentinels above is treated as transient by the ledger.
type Store interface {
	// Get reads the current capacity record for an experience.
	Get(ctx context.Context, experienceID uint64) (Record, error)

	// ConditionalDecrement subtracts n from remaining only if
	// remaining >= n, as a single indivisible operation, and returns
	// the new remaining value.  The token makes the operation
	// idempotent per request: replaying the same token returns the
	// previously recorded remaining without decrementing again, so a
	// caller that lost the response can retry safely.
	ConditionalDecrement(ctx context.Context, experienceID uint64, n int64, token string) (int64, error)

	// Release adds n back to remaining, capped at total, and returns
	// the new remaining value.  Used for compensation and cancels.
	// The token of the decrement being undone is invalidated in the
	// same operation, so a later retry carrying that token performs a
	// real decrement instead of replaying the stale recorded value.
	// token may be empty for releases not tied to a tracked request.
	Release(ctx context.Context, experienceID uint64, n int64, token string) (int64, error)

	// Init creates or reseeds the capacity record.  booked seats are
	// preserved when a guide changes the total: remaining becomes
	// total minus the seats already granted, floored at zero.
	Init(ctx context.Context, experienceID uint64, total int64) error

	// Delete removes the capacity record for a deleted experience.
	Delete(ctx context.Context, experienceID uint64) error
}
