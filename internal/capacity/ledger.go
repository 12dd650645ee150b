package capacity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"time"
)

// ErrUnavailable is returned by the ledger when the capacity store
// stayed unreachable across the whole retry budget.  Callers surface
// it as a retryable failure; a resubmission with the same idempotency
// token cannot double-decrement.
var ErrUnavailable = errors.New("capacity store unavailable")

// Ledger wraps a Store with bounded retry and exponential backoff for
// transient faults.  Business outcomes (ErrInsufficient, ErrNotFound)
// are never retried: a rejection is an answer, not a fault.
type Ledger struct {
	store    Store
	attempts int
	backoff  time.Duration
}

// NewLedger returns a Ledger over the given store.  attempts is the
// total number of tries per operation (minimum 1); backoff is the
// delay before the second try and doubles after each failure.
func NewLedger(store Store, attempts int, backoff time.Duration) *Ledger {
	if store == nil {
		panic("nil store passed to NewLedger")
	}
	if attempts < 1 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &Ledger{store: store, attempts: attempts, backoff: backoff}
}

// TryReserve reserves n seats against an experience.  On success it
// returns the new remaining value.  ErrInsufficient carries the
// current remaining value as a hint; ErrNotFound means the experience
// has no capacity record; ErrUnavailable means the store could not be
// reached within the retry budget.  The token makes retries idempotent
// at the store, covering both the internal retries here and a caller
// resubmission after a lost response.
func (l *Ledger) TryReserve(ctx context.Context, experienceID uint64, n int64, token string) (int64, error) {
	var remaining int64
	err := l.retry(ctx, "conditional decrement", func() error {
		var opErr error
		remaining, opErr = l.store.ConditionalDecrement(ctx, experienceID, n, token)
		return opErr
	})
	return remaining, err
}

// Release returns n seats to an experience, capped at its total.  It
// is the compensating action for TryReserve and is also invoked on
// cancellation.  token names the decrement being undone; the store
// invalidates it together with the increment so a later resubmission
// with the same token reserves for real instead of replaying a
// remaining value that no longer reflects a held decrement.  The same
// retry budget applies; a Release that exhausts it leaves capacity
// withheld with no matching reservation, which the caller must report
// for reconciliation.
func (l *Ledger) Release(ctx context.Context, experienceID uint64, n int64, token string) (int64, error) {
	var remaining int64
	err := l.retry(ctx, "release", func() error {
		var opErr error
		remaining, opErr = l.store.Release(ctx, experienceID, n, token)
		return opErr
	})
	return remaining, err
}

// Get reads the current capacity record without retrying; it is a
// plain read used by listings and carries no invariant.
func (l *Ledger) Get(ctx context.Context, experienceID uint64) (Record, error) {
	return l.store.Get(ctx, experienceID)
}

// retry runs op up to l.attempts times, sleeping with doubling delays
// between transient failures.  Sentinel outcomes pass through
// untouched on the first occurrence.
func (l *Ledger) retry(ctx context.Context, what string, op func() error) error {
	delay := l.backoff
	var lastErr error
	for attempt := 1; attempt <= l.attempts; attempt++ {
		err := op()
		if err == nil || errors.Is(err, ErrInsufficient) || errors.Is(err, ErrNotFound) {
			return err
		}
		lastErr = err
		if attempt == l.attempts {
			break
		}
		log.Printf("capacity: %s failed (attempt %d/%d): %v; retrying in %s", what, attempt, l.attempts, err, delay)
		select {
		case <-ctx.Done():
			return ErrUnavailable
		case <-time.After(delay):
		}
		delay *= 2
	}
	log.Printf("capacity: %s failed after %d attempts: %v", what, l.attempts, lastErr)
	return ErrUnavailable
}

// NewToken returns a random hex token used to scope a conditional
// decrement to one logical request when the client did not supply an
// idempotency key.
func NewToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
