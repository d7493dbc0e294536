package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-projection-booking/internal/model"
)

// ErrAuditoriumNotFound is returned when an auditorium lookup fails.
var ErrAuditoriumNotFound = errors.New("auditorium not found")

// AuditoriumRepo reads auditoriums.  The scheduler uses it to resolve the
// auditoriums of a cinema when filtering projections.
type AuditoriumRepo struct {
	db *sql.DB
}

// NewAuditoriumRepo constructs an AuditoriumRepo with the given DB handle.
func NewAuditoriumRepo(db *sql.DB) *AuditoriumRepo {
	return &AuditoriumRepo{db: db}
}

// GetByID retrieves an auditorium by its ID.
func (r *AuditoriumRepo) GetByID(ctx context.Context, id int) (*model.Auditorium, error) {
	const q = `SELECT id, cinema_id, name FROM auditoriums WHERE id = ?`
	var a model.Auditorium
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&a.ID, &a.CinemaID, &a.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAuditoriumNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListByCinema returns the auditoriums that belong to a cinema, ordered by
// id.  An unknown cinema yields an empty slice.
func (r *AuditoriumRepo) ListByCinema(ctx context.Context, cinemaID int) ([]model.Auditorium, error) {
	const q = `SELECT id, cinema_id, name FROM auditoriums WHERE cinema_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, cinemaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Auditorium
	for rows.Next() {
		var a model.Auditorium
		if err := rows.Scan(&a.ID, &a.CinemaID, &a.Name); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
