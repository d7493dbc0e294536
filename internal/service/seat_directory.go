package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-projection-booking/internal/model"
	"github.com/iliyamo/cinema-projection-booking/internal/repository"
)

// SeatDirectory resolves seats to their auditorium.
type SeatDirectory struct {
	seats   SeatStore
	timeout dbTimeout
}

func NewSeatDirectory(seats SeatStore, timeout time.Duration) *SeatDirectory {
	return &SeatDirectory{seats: seats, timeout: dbTimeout(timeout)}
}

// ResolveSeat returns the seat or ErrSeatNotFound.
func (d *SeatDirectory) ResolveSeat(ctx context.Context, seatID uuid.UUID) (*model.Seat, error) {
	ctx, cancel := d.timeout.ctx(ctx)
	defer cancel()
	s, err := d.seats.GetByID(ctx, seatID)
	if err != nil {
		if errors.Is(err, repository.ErrSeatNotFound) {
			return nil, ErrSeatNotFound
		}
		return nil, wrap(ErrPersistence, err)
	}
	return s, nil
}

// SeatsOf lists every seat of an auditorium ordered by row and number.
func (d *SeatDirectory) SeatsOf(ctx context.Context, auditoriumID int) ([]model.Seat, error) {
	ctx, cancel := d.timeout.ctx(ctx)
	defer cancel()
	seats, err := d.seats.ListByAuditorium(ctx, auditoriumID)
	if err != nil {
		return nil, wrap(ErrPersistence, err)
	}
	return seats, nil
}
