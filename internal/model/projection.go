package model

import (
	"time"

	"github.com/google/uuid"
)

// Projection is a single scheduled showing of a movie in an
// auditorium.  Only the start instant is stored; the running time is
// approximated by the scheduler's exclusion window.
//
// Fields:
//
//	ID             – primary key identifier.
//	MovieID        – movie being shown.
//	AuditoriumID   – auditorium where the showing takes place.
//	ProjectionTime – start of the showing, always UTC.
type Projection struct {
	ID             uuid.UUID `json:"id"`              // projections.id
	MovieID        uuid.UUID `json:"movie_id"`        // projections.movie_id
	AuditoriumID   int       `json:"auditorium_id"`   // projections.auditorium_id
	ProjectionTime time.Time `json:"projection_time"` // projections.projection_time
}
