package model

import (
	"time"

	"github.com/google/uuid"
)

// Ticket is a sold seat for one projection.  Its existence is what
// occupies the seat; there is no separate occupancy flag.  At most one
// ticket exists per (ProjectionID, SeatID).
//
// Fields:
//
//	ID           – primary key identifier.
//	ProjectionID – showing the ticket admits to.
//	SeatID       – seat sold.
//	UserID       – purchasing user.
//	Price        – price paid, in cents.
//	CreatedAt    – when the ticket was committed.
type Ticket struct {
	ID           uuid.UUID `json:"id"`            // tickets.id
	ProjectionID uuid.UUID `json:"projection_id"` // tickets.projection_id
	SeatID       uuid.UUID `json:"seat_id"`       // tickets.seat_id
	UserID       uuid.UUID `json:"user_id"`       // tickets.user_id
	Price        int64     `json:"price"`         // tickets.price_cents
	CreatedAt    time.Time `json:"created_at"`    // tickets.created_at
}
