package repository // repository defines data access for seats

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-projection-booking/internal/model"
)

// ErrSeatNotFound is returned when a seat lookup yields no rows.
var ErrSeatNotFound = errors.New("seat not found")

// SeatRepo provides read access to seats.  Seats are created together
// with their auditorium and are never mutated by the booking core.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// GetByID retrieves a seat by its id.
func (r *SeatRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Seat, error) {
	const q = `SELECT id, auditorium_id, seat_row, seat_number FROM seats WHERE id = ?`
	var s model.Seat
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.AuditoriumID, &s.Row, &s.Number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeatNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListByAuditorium retrieves all seats of an auditorium ordered by row
// then number.
func (r *SeatRepo) ListByAuditorium(ctx context.Context, auditoriumID int) ([]model.Seat, error) {
	const q = `SELECT id, auditorium_id, seat_row, seat_number
	           FROM seats
	           WHERE auditorium_id = ?
	           ORDER BY seat_row, seat_number`
	rows, err := r.db.QueryContext(ctx, q, auditoriumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.AuditoriumID, &s.Row, &s.Number); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
