package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-projection-booking/internal/lock"
	"github.com/iliyamo/cinema-projection-booking/internal/metrics"
	"github.com/iliyamo/cinema-projection-booking/internal/model"
	"github.com/iliyamo/cinema-projection-booking/internal/repository"
)

// ProjectionReader is the read path of the scheduler used when selling
// seats.
type ProjectionReader interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Projection, error)
}

// ReserveInput identifies the seat, the showing and the buyer.
type ReserveInput struct {
	SeatID       uuid.UUID
	ProjectionID uuid.UUID
	Price        int64
	UserName     string
}

// SeatReservationEngine sells seats.  A seat is sold at most once per
// projection: the ticket scan and insert run under a lock keyed by
// projection, and the unique index on tickets rejects anything that slips
// past it.
type SeatReservationEngine struct {
	seats       *SeatDirectory
	projections ProjectionReader
	tickets     TicketStore
	users       UserStore
	locker      lock.Locker
	now         func() time.Time
	timeout     dbTimeout
	log         logrus.FieldLogger
}

func NewSeatReservationEngine(
	seats *SeatDirectory,
	projections ProjectionReader,
	tickets TicketStore,
	users UserStore,
	locker lock.Locker,
	now func() time.Time,
	timeout time.Duration,
	log logrus.FieldLogger,
) *SeatReservationEngine {
	if now == nil {
		now = time.Now
	}
	return &SeatReservationEngine{
		seats:       seats,
		projections: projections,
		tickets:     tickets,
		users:       users,
		locker:      locker,
		now:         now,
		timeout:     dbTimeout(timeout),
		log:         log,
	}
}

// Reserve validates and sells one seat.  Checks run in order and the
// first failure is returned: seat, projection, auditorium match, existing
// tickets, user, insert.
func (e *SeatReservationEngine) Reserve(ctx context.Context, in ReserveInput) (t *model.Ticket, err error) {
	defer func() { countReservation(err) }()

	if in.Price < 0 {
		return nil, invalid("price must not be negative")
	}
	userName := strings.TrimSpace(in.UserName)
	if userName == "" {
		return nil, invalid("user name is required")
	}

	seat, err := e.seats.ResolveSeat(ctx, in.SeatID)
	if err != nil {
		return nil, err
	}
	proj, err := e.projections.Get(ctx, in.ProjectionID)
	if err != nil {
		return nil, err
	}
	if seat.AuditoriumID != proj.AuditoriumID {
		return nil, ErrAuditoriumMismatch
	}

	unlock, err := e.locker.Lock(ctx, lock.ProjectionKey(proj.ID))
	if err != nil {
		return nil, wrap(ErrPersistence, err)
	}
	defer unlock()

	sold, err := e.listTickets(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	if lo.ContainsBy(sold, func(s model.Ticket) bool { return s.SeatID == seat.ID }) {
		return nil, ErrSeatAlreadyTaken
	}

	user, err := e.user(ctx, userName)
	if err != nil {
		return nil, err
	}

	t = &model.Ticket{
		ID:           uuid.New(),
		ProjectionID: proj.ID,
		SeatID:       seat.ID,
		UserID:       user.ID,
		Price:        in.Price,
	}
	dctx, cancel := e.timeout.ctx(ctx)
	defer cancel()
	if err := e.tickets.Create(dctx, t); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrSeatAlreadyTaken
		}
		return nil, wrap(ErrTicketCreation, err)
	}

	e.log.WithFields(logrus.Fields{
		"ticket_id":     t.ID,
		"projection_id": t.ProjectionID,
		"seat_id":       t.SeatID,
		"user_id":       t.UserID,
	}).Info("seat reserved")
	return t, nil
}

// GetTicket returns a ticket or ErrTicketNotFound.
func (e *SeatReservationEngine) GetTicket(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	dctx, cancel := e.timeout.ctx(ctx)
	defer cancel()
	t, err := e.tickets.GetByID(dctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, wrap(ErrPersistence, err)
	}
	return t, nil
}

// DeleteTicket cancels a ticket.  Cancellation is only allowed while the
// projection's calendar day is strictly after today.
func (e *SeatReservationEngine) DeleteTicket(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	t, err := e.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	proj, err := e.projections.Get(ctx, t.ProjectionID)
	if err != nil {
		return nil, err
	}
	if !afterToday(proj.ProjectionTime, e.now()) {
		return nil, ErrTicketNotCancellable
	}

	dctx, cancel := e.timeout.ctx(ctx)
	defer cancel()
	if err := e.tickets.Delete(dctx, id); err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, wrap(ErrPersistence, err)
	}
	e.log.WithField("ticket_id", id).Info("ticket cancelled")
	return t, nil
}

// BusySeats returns the seats sold for a projection.  The result is a
// hint only; Reserve re-checks at commit time.
func (e *SeatReservationEngine) BusySeats(ctx context.Context, projectionID uuid.UUID) ([]model.Seat, error) {
	sold, err := e.listTickets(ctx, projectionID)
	if err != nil {
		return nil, err
	}
	seats := make([]model.Seat, 0, len(sold))
	for _, t := range sold {
		s, err := e.seats.ResolveSeat(ctx, t.SeatID)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *s)
	}
	return seats, nil
}

// SeatAvailability is one seat of a projection's auditorium and whether
// it has been sold.
type SeatAvailability struct {
	model.Seat
	Busy bool `json:"busy"`
}

// SeatMap lists every seat of the projection's auditorium with its sold
// state.  Like BusySeats it is only a hint.
func (e *SeatReservationEngine) SeatMap(ctx context.Context, projectionID uuid.UUID) ([]SeatAvailability, error) {
	proj, err := e.projections.Get(ctx, projectionID)
	if err != nil {
		return nil, err
	}
	seats, err := e.seats.SeatsOf(ctx, proj.AuditoriumID)
	if err != nil {
		return nil, err
	}
	sold, err := e.listTickets(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	busy := lo.Associate(sold, func(t model.Ticket) (uuid.UUID, struct{}) {
		return t.SeatID, struct{}{}
	})
	return lo.Map(seats, func(s model.Seat, _ int) SeatAvailability {
		_, taken := busy[s.ID]
		return SeatAvailability{Seat: s, Busy: taken}
	}), nil
}

// TicketsForProjection lists the tickets sold for a projection.
func (e *SeatReservationEngine) TicketsForProjection(ctx context.Context, projectionID uuid.UUID) ([]model.Ticket, error) {
	return e.listTickets(ctx, projectionID)
}

func (e *SeatReservationEngine) listTickets(ctx context.Context, projectionID uuid.UUID) ([]model.Ticket, error) {
	dctx, cancel := e.timeout.ctx(ctx)
	defer cancel()
	sold, err := e.tickets.ListByProjection(dctx, projectionID)
	if err != nil {
		return nil, wrap(ErrTicketLookup, err)
	}
	return sold, nil
}

func (e *SeatReservationEngine) user(ctx context.Context, userName string) (*model.User, error) {
	dctx, cancel := e.timeout.ctx(ctx)
	defer cancel()
	u, err := e.users.GetByUserName(dctx, userName)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, wrap(ErrPersistence, err)
	}
	return u, nil
}

// afterToday reports whether t falls on a UTC calendar day after now's.
func afterToday(t, now time.Time) bool {
	day := func(x time.Time) time.Time {
		y, m, d := x.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return day(t).After(day(now))
}

func countReservation(err error) {
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	metrics.ReservationsTotal.WithLabelValues(outcome).Inc()
}
