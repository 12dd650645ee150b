// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservationConfirmedEvent is published when an admission request
// terminates Confirmed.  It carries enough information for downstream
// consumers to log, notify, or trigger analytics without querying the
// primary database.
type ReservationConfirmedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	ExperienceID  uint64 `json:"experience_id"`
	UserID        uint64 `json:"user_id"`
	Date          string `json:"date"`
	PartySize     int64  `json:"party_size"`
	Remaining     int64  `json:"capacity_remaining"`
	ConfirmedAt   string `json:"confirmed_at"`
}

// CapacityReconcileEvent is published when a compensating release
// failed and seats are withheld with no corresponding reservation.
// The queue is durable: each message represents a capacity record an
// operator must restore by hand, so losing one would silently leak
// seats.
type CapacityReconcileEvent struct {
	ExperienceID uint64 `json:"experience_id"`
	Seats        int64  `json:"seats"`
	Reason       string `json:"reason"`
	OccurredAt   string `json:"occurred_at"`
}
