package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-projection-booking/internal/model"
)

// ErrTicketNotFound is returned when a ticket lookup yields no rows.
var ErrTicketNotFound = errors.New("ticket not found")

// TicketRepo persists tickets.  The tickets table carries a unique index
// on (projection_id, seat_id); Create maps a violation to ErrConflict.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, projection_id, seat_id, user_id, price_cents, created_at`

// Create inserts a ticket and populates CreatedAt from the stored row.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	const q = `INSERT INTO tickets (id, projection_id, seat_id, user_id, price_cents) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, t.ID, t.ProjectionID, t.SeatID, t.UserID, t.Price); err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("seat %s for projection %s: %w", t.SeatID, t.ProjectionID, ErrConflict)
		}
		return err
	}
	const sel = `SELECT created_at FROM tickets WHERE id = ?`
	if err := r.db.QueryRowContext(ctx, sel, t.ID).Scan(&t.CreatedAt); err != nil {
		return err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return nil
}

// GetByID fetches a ticket by id.
func (r *TicketRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	var t model.Ticket
	err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.ProjectionID, &t.SeatID, &t.UserID, &t.Price, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListByProjection returns all tickets sold for a projection.  Zero
// tickets is a valid empty result, not an error.
func (r *TicketRepo) ListByProjection(ctx context.Context, projectionID uuid.UUID) ([]model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE projection_id = ? ORDER BY created_at`
	return r.list(ctx, q, projectionID)
}

// ListUncredited returns up to limit tickets that have no loyalty credit
// row yet, oldest first.  The reconciler feeds them back to the ledger.
func (r *TicketRepo) ListUncredited(ctx context.Context, limit int) ([]model.Ticket, error) {
	const q = `SELECT t.id, t.projection_id, t.seat_id, t.user_id, t.price_cents, t.created_at
	           FROM tickets t
	           LEFT JOIN loyalty_credits lc ON lc.ticket_id = t.id
	           WHERE lc.ticket_id IS NULL
	           ORDER BY t.created_at
	           LIMIT ?`
	return r.list(ctx, q, limit)
}

func (r *TicketRepo) list(ctx context.Context, q string, args ...any) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Ticket, 0)
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.ProjectionID, &t.SeatID, &t.UserID, &t.Price, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a ticket by id.
func (r *TicketRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTicketNotFound
	}
	return nil
}
