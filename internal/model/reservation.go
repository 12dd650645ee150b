package model

import "time"

// Reservation records a tourist's booking against an experience on a
// given date.  A reservation only exists in CONFIRMED state: the
// admission controller reserves capacity first and persists the record
// second, so a stored reservation always corresponds to a real
// capacity decrement.
//
// Fields:
//  ID             – primary key identifier, assigned on creation.
//  ExperienceID   – experience being booked.  No foreign key is
//                   enforced across stores; the experience may have
//                   been deleted since.
//  UserID         – tourist who requested the booking.
//  Date           – normalized booking date (UTC calendar day).
//  PartySize      – number of seats booked (num_personas, >= 1).
//  Notes          – free-text notes from the tourist.
//  Attended       – whether the party showed up; one-way false→true.
//  Status         – reservation state (CONFIRMED today; CANCELLED
//                   reservations are deleted, not flagged).
//  IdempotencyKey – optional client-supplied dedup token.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Reservation struct {
	ID             uint64    `json:"id"`            // reservations.id
	ExperienceID   uint64    `json:"experience_id"` // reservations.experience_id
	UserID         uint64    `json:"user_id"`       // reservations.user_id
	Date           time.Time `json:"date"`          // reservations.booking_date
	PartySize      int64     `json:"party_size"`    // reservations.party_size
	Notes          string    `json:"notes"`         // reservations.notes
	Attended       bool      `json:"attended"`      // reservations.attended
	Status         string    `json:"status"`        // reservations.status
	IdempotencyKey *string   `json:"-"`             // reservations.idempotency_key (nullable)
	CreatedAt      time.Time `json:"created_at"`    // reservations.created_at
	UpdatedAt      time.Time `json:"updated_at"`    // reservations.updated_at
}
