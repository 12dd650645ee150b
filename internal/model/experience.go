package model

import "time"

// Experience represents a guided tour offering that tourists can
// book.  The experience metadata (title, description, price) lives
// in MySQL, while the authoritative capacity counter lives in the
// capacity store and is mirrored here for read responses only.
//
// Fields:
//  ID                – primary key identifier.
//  Title             – short display title of the experience.
//  Description       – longer free-text description.
//  PriceCents        – price per person in cents.
//  GuideID           – user who created and runs the experience.
//  CapacityTotal     – maximum number of seats (cupo).
//  CapacityRemaining – seats still available; authoritative value is
//                      held by the capacity store, not this column.
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Experience struct {
	ID                uint64    `json:"id"`                 // experiences.id
	Title             string    `json:"title"`              // experiences.title
	Description       string    `json:"description"`        // experiences.description
	PriceCents        uint32    `json:"price_cents"`        // experiences.price_cents
	GuideID           uint64    `json:"guide_id"`           // experiences.guide_id
	CapacityTotal     int64     `json:"capacity_total"`     // experiences.capacity_total
	CapacityRemaining int64     `json:"capacity_remaining"` // read from the capacity store
	CreatedAt         time.Time `json:"created_at"`         // experiences.created_at
	UpdatedAt         time.Time `json:"updated_at"`         // experiences.updated_at
}
