// Package service implements projection scheduling and seat reservation.
// Services are stateless over their stores; the only shared state is the
// database and the keyed locks serialising check-then-act sequences.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-projection-booking/internal/model"
)

// SeatStore is the read side of the seats table.
type SeatStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Seat, error)
	ListByAuditorium(ctx context.Context, auditoriumID int) ([]model.Seat, error)
}

// AuditoriumStore reads auditoriums.
type AuditoriumStore interface {
	GetByID(ctx context.Context, id int) (*model.Auditorium, error)
	ListByCinema(ctx context.Context, cinemaID int) ([]model.Auditorium, error)
}

// ProjectionStore persists projections.
type ProjectionStore interface {
	Create(ctx context.Context, p *model.Projection) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Projection, error)
	ListByAuditorium(ctx context.Context, auditoriumID int) ([]model.Projection, error)
	List(ctx context.Context) ([]model.Projection, error)
	Update(ctx context.Context, p *model.Projection) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TicketStore persists tickets.  Create must fail with an error wrapping
// repository.ErrConflict when the (projection, seat) pair is already sold.
type TicketStore interface {
	Create(ctx context.Context, t *model.Ticket) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	ListByProjection(ctx context.Context, projectionID uuid.UUID) ([]model.Ticket, error)
	ListUncredited(ctx context.Context, limit int) ([]model.Ticket, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserStore resolves purchasing users.
type UserStore interface {
	GetByUserName(ctx context.Context, userName string) (*model.User, error)
}

// LoyaltyStore credits points for a ticket, at most once per ticket, and
// returns the user's new total.
type LoyaltyStore interface {
	Credit(ctx context.Context, userID, ticketID uuid.UUID, points int) (int, error)
}

// SoldTickets lists the tickets sold for a projection.
type SoldTickets interface {
	ListByProjection(ctx context.Context, projectionID uuid.UUID) ([]model.Ticket, error)
}

// dbTimeout bounds a single persistence call.
type dbTimeout time.Duration

func (d dbTimeout) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, time.Duration(d))
}
