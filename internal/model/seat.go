package model

import "github.com/google/uuid"

// Seat describes a physical seat in an auditorium.  The triple
// (AuditoriumID, Row, Number) is unique; uniqueness is enforced when
// seats are created, not when they are reserved.
//
// Fields:
//
//	ID           – primary key identifier.
//	AuditoriumID – auditorium to which this seat belongs.
//	Row          – row number, 1-based.
//	Number       – position of the seat within the row, 1-based.
type Seat struct {
	ID           uuid.UUID `json:"id"`            // seats.id
	AuditoriumID int       `json:"auditorium_id"` // seats.auditorium_id
	Row          int       `json:"row"`           // seats.seat_row
	Number       int       `json:"number"`        // seats.seat_number
}
