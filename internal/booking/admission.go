package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/andestours/experience-booking/internal/capacity"
	"github.com/andestours/experience-booking/internal/model"
	"github.com/andestours/experience-booking/internal/queue"
)

// CapacityLedger is the slice of the capacity ledger the controller
// needs.  Implemented by *capacity.Ledger.
type CapacityLedger interface {
	TryReserve(ctx context.Context, experienceID uint64, n int64, token string) (int64, error)
	Release(ctx context.Context, experienceID uint64, n int64, token string) (int64, error)
}

// ReservationStore is the durable reservation collection.  Methods
// report a missing record with an error satisfying
// errors.Is(err, sql.ErrNoRows), which is how the SQL-backed
// repository naturally behaves.
type ReservationStore interface {
	Create(ctx context.Context, r *model.Reservation) error
	GetByIdempotencyKey(ctx context.Context, userID uint64, key string) (model.Reservation, error)
	SetAttended(ctx context.Context, id uint64) error
	Delete(ctx context.Context, id uint64) (model.Reservation, error)
}

// EventPublisher emits domain events after state changes.  Publishing
// is best effort for confirmations and mandatory-by-policy for
// reconciliation records; either way a publish failure never fails the
// request on its own.
type EventPublisher interface {
	PublishReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error
	PublishCapacityReconcile(ctx context.Context, ev queue.CapacityReconcileEvent) error
}

// Controller runs the admission state machine for reservation
// requests.  It is stateless between requests: any number of requests
// may execute concurrently from any number of replicas, and the only
// serialization point is the capacity store's conditional update.
type Controller struct {
	ledger       CapacityLedger
	reservations ReservationStore
	events       EventPublisher // may be nil; events are then dropped
	now          func() time.Time
}

// NewController constructs a Controller.  events may be nil in
// deployments without a broker; now defaults to time.Now.
func NewController(ledger CapacityLedger, reservations ReservationStore, events EventPublisher, now func() time.Time) *Controller {
	if ledger == nil || reservations == nil {
		panic("nil dependency passed to NewController")
	}
	if now == nil {
		now = time.Now
	}
	return &Controller{ledger: ledger, reservations: reservations, events: events, now: now}
}

// CreateRequest carries one booking request through admission.
type CreateRequest struct {
	ExperienceID   uint64
	UserID         uint64
	Date           string // raw date string, validated here
	PartySize      int64
	Notes          string
	IdempotencyKey string // optional; empty means no client key
}

// CreateReservation admits or rejects a booking request.
//
// The sequence is reserve-then-persist: capacity is decremented first
// through the ledger's atomic conditional update, the reservation row
// is written second, and a failed write triggers the compensating
// release.  This ordering guarantees capacity is never held by a
// reservation that does not durably exist.  The caller sees exactly
// one of: the confirmed reservation, CapacityRejectedError with a
// remaining hint, a ValidationError, ErrNotFound for an unknown
// experience, or ErrUnavailable.
func (c *Controller) CreateReservation(ctx context.Context, req CreateRequest) (model.Reservation, error) {
	if req.ExperienceID == 0 {
		return model.Reservation{}, &ValidationError{Reason: "experience_id is required"}
	}
	if req.UserID == 0 {
		return model.Reservation{}, &ValidationError{Reason: "user_id is required"}
	}
	if req.PartySize < 1 {
		return model.Reservation{}, &ValidationError{Reason: "party_size must be at least 1"}
	}
	date, err := ParseBookingDate(req.Date, c.now())
	if err != nil {
		return model.Reservation{}, err
	}

	// A replayed request with a known idempotency key returns the
	// existing reservation; no second decrement happens.
	if req.IdempotencyKey != "" {
		existing, err := c.reservations.GetByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, fmt.Errorf("%w: idempotency lookup: %v", ErrUnavailable, err)
		}
	}

	// The decrement token scopes the conditional update to this
	// logical request so the ledger's internal retries, and a caller
	// resubmission after a lost response, cannot decrement twice.
	token := req.IdempotencyKey
	if token == "" {
		token, err = capacity.NewToken()
		if err != nil {
			return model.Reservation{}, fmt.Errorf("%w: token generation: %v", ErrUnavailable, err)
		}
	}

	remaining, err := c.ledger.TryReserve(ctx, req.ExperienceID, req.PartySize, token)
	switch {
	case errors.Is(err, capacity.ErrInsufficient):
		return model.Reservation{}, &CapacityRejectedError{Remaining: remaining}
	case errors.Is(err, capacity.ErrNotFound):
		return model.Reservation{}, ErrNotFound
	case err != nil:
		return model.Reservation{}, ErrUnavailable
	}

	rec := model.Reservation{
		ExperienceID: req.ExperienceID,
		UserID:       req.UserID,
		Date:         date,
		PartySize:    req.PartySize,
		Notes:        req.Notes,
		Attended:     false,
		Status:       "CONFIRMED",
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		rec.IdempotencyKey = &key
	}
	if err := c.reservations.Create(ctx, &rec); err != nil {
		// Capacity was decremented but the reservation is not
		// durable; undo the decrement before reporting failure.
		// Passing the token invalidates its replay marker, so the
		// resubmission this failure invites will decrement for real.
		if _, relErr := c.ledger.Release(ctx, req.ExperienceID, req.PartySize, token); relErr != nil {
			return model.Reservation{}, c.recordInconsistency(ctx, req.ExperienceID, req.PartySize, "compensation after persist failure", relErr)
		}
		return model.Reservation{}, fmt.Errorf("%w: persist reservation: %v", ErrUnavailable, err)
	}

	c.publishConfirmed(ctx, rec, remaining)
	return rec, nil
}

// MarkAttended flips the attended flag from false to true on an
// existing reservation.  The transition is one-way and does not touch
// capacity.
func (c *Controller) MarkAttended(ctx context.Context, reservationID uint64) error {
	if err := c.reservations.SetAttended(ctx, reservationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: mark attended: %v", ErrUnavailable, err)
	}
	return nil
}

// CancelReservation removes the reservation and releases its seats
// back to the experience, capped at the experience's total.  A second
// cancel of the same reservation reports ErrNotFound.  When the
// release fails after the row is already gone, the cancellation is
// still reported as successful (the record deletion is durable) and
// the withheld seats are logged and published for reconciliation.
func (c *Controller) CancelReservation(ctx context.Context, reservationID uint64) (model.Reservation, error) {
	rec, err := c.reservations.Delete(ctx, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, ErrNotFound
		}
		return model.Reservation{}, fmt.Errorf("%w: delete reservation: %v", ErrUnavailable, err)
	}
	// Release under the reservation's own token so a still-remembered
	// idempotency key cannot be replayed into free seats after the
	// cancellation; a fresh create with the same key reserves anew.
	token := ""
	if rec.IdempotencyKey != nil {
		token = *rec.IdempotencyKey
	}
	if _, relErr := c.ledger.Release(ctx, rec.ExperienceID, rec.PartySize, token); relErr != nil && !errors.Is(relErr, capacity.ErrNotFound) {
		_ = c.recordInconsistency(ctx, rec.ExperienceID, rec.PartySize, "release on cancellation", relErr)
	}
	return rec, nil
}

// recordInconsistency logs a failed compensation and pushes it onto
// the reconciliation queue so an operator can restore the withheld
// seats.  It returns the InconsistencyError for callers that surface
// the failure.
func (c *Controller) recordInconsistency(ctx context.Context, experienceID uint64, seats int64, reason string, cause error) error {
	incErr := &InconsistencyError{ExperienceID: experienceID, Seats: seats, Cause: cause}
	log.Printf("admission: %v (%s)", incErr, reason)
	if c.events != nil {
		ev := queue.CapacityReconcileEvent{
			ExperienceID: experienceID,
			Seats:        seats,
			Reason:       reason,
			OccurredAt:   c.now().UTC().Format(time.RFC3339),
		}
		if pubErr := c.events.PublishCapacityReconcile(ctx, ev); pubErr != nil {
			log.Printf("admission: reconcile publish failed: %v", pubErr)
		}
	}
	return incErr
}

func (c *Controller) publishConfirmed(ctx context.Context, rec model.Reservation, remaining int64) {
	if c.events == nil {
		return
	}
	ev := queue.ReservationConfirmedEvent{
		ReservationID: rec.ID,
		ExperienceID:  rec.ExperienceID,
		UserID:        rec.UserID,
		Date:          rec.Date.Format("2006-01-02"),
		PartySize:     rec.PartySize,
		Remaining:     remaining,
		ConfirmedAt:   c.now().UTC().Format(time.RFC3339),
	}
	if err := c.events.PublishReservationConfirmed(ctx, ev); err != nil {
		log.Printf("admission: confirmed publish failed: %v", err)
	}
}
