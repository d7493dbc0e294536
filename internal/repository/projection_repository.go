// Package repository contains data access logic for projections.  A
// projection is a scheduled showing of a movie in an auditorium; the
// scheduling rules themselves live in the service layer.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-projection-booking/internal/model"
)

// ErrProjectionNotFound indicates that a projection was not located in the DB.
var ErrProjectionNotFound = errors.New("projection not found")

// ProjectionRepo manages persistence for projections.
type ProjectionRepo struct {
	db *sql.DB
}

// NewProjectionRepo constructs a ProjectionRepo with the given DB handle.
func NewProjectionRepo(db *sql.DB) *ProjectionRepo {
	return &ProjectionRepo{db: db}
}

const projectionColumns = `id, movie_id, auditorium_id, projection_time`

// Create inserts a new projection.  The caller assigns the ID.
func (r *ProjectionRepo) Create(ctx context.Context, p *model.Projection) error {
	const q = `INSERT INTO projections (id, movie_id, auditorium_id, projection_time) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, p.ID, p.MovieID, p.AuditoriumID, p.ProjectionTime.UTC())
	return err
}

// GetByID retrieves a projection by its ID.  It returns
// ErrProjectionNotFound if there is no matching row.
func (r *ProjectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Projection, error) {
	const q = `SELECT ` + projectionColumns + ` FROM projections WHERE id = ?`
	var p model.Projection
	err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.MovieID, &p.AuditoriumID, &p.ProjectionTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectionNotFound
		}
		return nil, err
	}
	p.ProjectionTime = p.ProjectionTime.UTC()
	return &p, nil
}

// ListByAuditorium returns all projections scheduled in an auditorium
// ordered by start time.  When none exist it returns an empty slice.
func (r *ProjectionRepo) ListByAuditorium(ctx context.Context, auditoriumID int) ([]model.Projection, error) {
	const q = `SELECT ` + projectionColumns + `
	           FROM projections
	           WHERE auditorium_id = ?
	           ORDER BY projection_time ASC`
	return r.list(ctx, q, auditoriumID)
}

// List returns every projection ordered by start time.
func (r *ProjectionRepo) List(ctx context.Context) ([]model.Projection, error) {
	const q = `SELECT ` + projectionColumns + ` FROM projections ORDER BY projection_time ASC`
	return r.list(ctx, q)
}

func (r *ProjectionRepo) list(ctx context.Context, q string, args ...any) ([]model.Projection, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]model.Projection, 0)
	for rows.Next() {
		var p model.Projection
		if err := rows.Scan(&p.ID, &p.MovieID, &p.AuditoriumID, &p.ProjectionTime); err != nil {
			return nil, err
		}
		p.ProjectionTime = p.ProjectionTime.UTC()
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update overwrites movie, auditorium and time of an existing projection.
// It returns ErrProjectionNotFound when no row has the given id.
func (r *ProjectionRepo) Update(ctx context.Context, p *model.Projection) error {
	const q = `UPDATE projections SET movie_id = ?, auditorium_id = ?, projection_time = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, p.MovieID, p.AuditoriumID, p.ProjectionTime.UTC(), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// MySQL reports zero affected rows when the values are unchanged, so
	// tell "missing" apart from "same values".
	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM projections WHERE id = ? LIMIT 1`, p.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProjectionNotFound
	}
	return err
}

// Delete removes a projection.  Tickets referencing it block the delete
// through fk_ticket_projection, reported as ErrInUse.
func (r *ProjectionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projections WHERE id = ?`, id)
	if err != nil {
		if isRowReferenced(err) {
			return fmt.Errorf("projection %s: %w", id, ErrInUse)
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProjectionNotFound
	}
	return nil
}
