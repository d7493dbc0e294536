package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-projection-booking/internal/lock"
	"github.com/iliyamo/cinema-projection-booking/internal/metrics"
	"github.com/iliyamo/cinema-projection-booking/internal/model"
	"github.com/iliyamo/cinema-projection-booking/internal/repository"
)

// CreateProjectionInput describes a new showing.
type CreateProjectionInput struct {
	MovieID        uuid.UUID
	AuditoriumID   int
	ProjectionTime time.Time
}

// UpdateProjectionInput carries the fields to change; nil leaves a field
// as it is.
type UpdateProjectionInput struct {
	MovieID        *uuid.UUID
	AuditoriumID   *int
	ProjectionTime *time.Time
}

// ProjectionFilter narrows a projection listing.  A nil field places no
// restriction.  Date matches on the UTC calendar day only.
type ProjectionFilter struct {
	CinemaID     *int
	AuditoriumID *int
	MovieID      *uuid.UUID
	Date         *time.Time
}

// ProjectionScheduler keeps projections in the same auditorium at least
// Window apart.  Writes for one auditorium are serialised by a keyed lock
// so the overlap scan and the insert act as a unit.  A projection with
// sold tickets cannot be deleted or moved to another auditorium.
type ProjectionScheduler struct {
	projections ProjectionStore
	auditoriums AuditoriumStore
	tickets     SoldTickets
	locker      lock.Locker
	window      time.Duration
	timeout     dbTimeout
	log         logrus.FieldLogger
}

func NewProjectionScheduler(
	projections ProjectionStore,
	auditoriums AuditoriumStore,
	tickets SoldTickets,
	locker lock.Locker,
	window time.Duration,
	timeout time.Duration,
	log logrus.FieldLogger,
) *ProjectionScheduler {
	return &ProjectionScheduler{
		projections: projections,
		auditoriums: auditoriums,
		tickets:     tickets,
		locker:      locker,
		window:      window,
		timeout:     dbTimeout(timeout),
		log:         log,
	}
}

// Window is the exclusion radius around each projection's start.
func (s *ProjectionScheduler) Window() time.Duration { return s.window }

// Create schedules a projection unless it starts strictly within Window
// of another projection in the same auditorium.
func (s *ProjectionScheduler) Create(ctx context.Context, in CreateProjectionInput) (p *model.Projection, err error) {
	defer func() { countSchedule("create", err) }()

	if in.MovieID == uuid.Nil || in.AuditoriumID <= 0 || in.ProjectionTime.IsZero() {
		return nil, invalid("movie_id, auditorium_id and projection_time are required")
	}

	if err := s.requireAuditorium(ctx, in.AuditoriumID); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, lock.AuditoriumKey(in.AuditoriumID))
	if err != nil {
		return nil, wrap(ErrPersistence, err)
	}
	defer unlock()

	p = &model.Projection{
		ID:             uuid.New(),
		MovieID:        in.MovieID,
		AuditoriumID:   in.AuditoriumID,
		ProjectionTime: in.ProjectionTime.UTC(),
	}
	if err := s.checkOverlap(ctx, p); err != nil {
		return nil, err
	}

	dctx, cancel := s.timeout.ctx(ctx)
	defer cancel()
	if err := s.projections.Create(dctx, p); err != nil {
		return nil, wrap(ErrPersistence, err)
	}
	s.log.WithFields(logrus.Fields{
		"projection_id": p.ID,
		"auditorium_id": p.AuditoriumID,
		"time":          p.ProjectionTime,
	}).Info("projection scheduled")
	return p, nil
}

// Update changes a projection and re-runs the overlap check against the
// target auditorium.  The projection being updated is excluded from its
// own scan, so moving a showing by less than Window is allowed.
func (s *ProjectionScheduler) Update(ctx context.Context, id uuid.UUID, in UpdateProjectionInput) (p *model.Projection, err error) {
	defer func() { countSchedule("update", err) }()

	if in.AuditoriumID != nil && *in.AuditoriumID <= 0 {
		return nil, invalid("auditorium_id must be positive")
	}
	if in.MovieID != nil && *in.MovieID == uuid.Nil {
		return nil, invalid("movie_id must not be empty")
	}
	if in.ProjectionTime != nil && in.ProjectionTime.IsZero() {
		return nil, invalid("projection_time must not be empty")
	}

	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	target := cur.AuditoriumID
	if in.AuditoriumID != nil && *in.AuditoriumID != target {
		target = *in.AuditoriumID
		if err := s.requireAuditorium(ctx, target); err != nil {
			return nil, err
		}
	}

	unlock, err := s.locker.Lock(ctx, lock.AuditoriumKey(target))
	if err != nil {
		return nil, wrap(ErrPersistence, err)
	}
	defer unlock()

	// Re-read under the lock; another writer may have changed it.
	if cur, err = s.Get(ctx, id); err != nil {
		return nil, err
	}
	if target != cur.AuditoriumID {
		if err := s.requireUnsold(ctx, id); err != nil {
			return nil, err
		}
	}
	next := *cur
	next.AuditoriumID = target
	if in.MovieID != nil {
		next.MovieID = *in.MovieID
	}
	if in.ProjectionTime != nil {
		next.ProjectionTime = in.ProjectionTime.UTC()
	}
	if err := s.checkOverlap(ctx, &next); err != nil {
		return nil, err
	}

	dctx, cancel := s.timeout.ctx(ctx)
	defer cancel()
	if err := s.projections.Update(dctx, &next); err != nil {
		if errors.Is(err, repository.ErrProjectionNotFound) {
			return nil, ErrProjectionNotFound
		}
		return nil, wrap(ErrPersistence, err)
	}
	return &next, nil
}

// Delete removes a projection and returns it.  Projections with sold
// tickets are refused with ErrProjectionHasTickets; the foreign key on
// tickets backs this up for a sale that lands between check and delete.
func (s *ProjectionScheduler) Delete(ctx context.Context, id uuid.UUID) (*model.Projection, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireUnsold(ctx, id); err != nil {
		return nil, err
	}
	dctx, cancel := s.timeout.ctx(ctx)
	defer cancel()
	if err := s.projections.Delete(dctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrProjectionNotFound):
			return nil, ErrProjectionNotFound
		case errors.Is(err, repository.ErrInUse):
			return nil, ErrProjectionHasTickets
		}
		return nil, wrap(ErrPersistence, err)
	}
	return p, nil
}

// Get returns a projection or ErrProjectionNotFound.
func (s *ProjectionScheduler) Get(ctx context.Context, id uuid.UUID) (*model.Projection, error) {
	dctx, cancel := s.timeout.ctx(ctx)
	defer cancel()
	p, err := s.projections.GetByID(dctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectionNotFound) {
			return nil, ErrProjectionNotFound
		}
		return nil, wrap(ErrPersistence, err)
	}
	return p, nil
}

// Filter lists projections narrowed by cinema, then auditorium, then
// movie, then calendar date.  An empty filter returns every projection.
func (s *ProjectionScheduler) Filter(ctx context.Context, f ProjectionFilter) ([]model.Projection, error) {
	dctx, cancel := s.timeout.ctx(ctx)
	defer cancel()
	out, err := s.projections.List(dctx)
	if err != nil {
		return nil, wrap(ErrPersistence, err)
	}

	if f.CinemaID != nil {
		auds, err := s.auditoriums.ListByCinema(dctx, *f.CinemaID)
		if err != nil {
			return nil, wrap(ErrPersistence, err)
		}
		ids := lo.Map(auds, func(a model.Auditorium, _ int) int { return a.ID })
		out = lo.Filter(out, func(p model.Projection, _ int) bool {
			return lo.Contains(ids, p.AuditoriumID)
		})
	}
	if f.AuditoriumID != nil {
		out = lo.Filter(out, func(p model.Projection, _ int) bool {
			return p.AuditoriumID == *f.AuditoriumID
		})
	}
	if f.MovieID != nil {
		out = lo.Filter(out, func(p model.Projection, _ int) bool {
			return p.MovieID == *f.MovieID
		})
	}
	if f.Date != nil {
		out = lo.Filter(out, func(p model.Projection, _ int) bool {
			return sameDay(p.ProjectionTime, *f.Date)
		})
	}
	return out, nil
}

func (s *ProjectionScheduler) requireUnsold(ctx context.Context, id uuid.UUID) error {
	dctx, cancel := s.timeout.ctx(ctx)
	defer cancel()
	sold, err := s.tickets.ListByProjection(dctx, id)
	if err != nil {
		return wrap(ErrTicketLookup, err)
	}
	if len(sold) > 0 {
		s.log.WithFields(logrus.Fields{
			"projection_id": id,
			"tickets":       len(sold),
		}).Info("projection change refused: tickets sold")
		return ErrProjectionHasTickets
	}
	return nil
}

func (s *ProjectionScheduler) requireAuditorium(ctx context.Context, id int) error {
	dctx, cancel := s.timeout.ctx(ctx)
	defer cancel()
	if _, err := s.auditoriums.GetByID(dctx, id); err != nil {
		if errors.Is(err, repository.ErrAuditoriumNotFound) {
			return ErrAuditoriumNotFound
		}
		return wrap(ErrPersistence, err)
	}
	return nil
}

// checkOverlap rejects p if another projection in its auditorium starts
// strictly within the window.  A gap of exactly Window is accepted.
func (s *ProjectionScheduler) checkOverlap(ctx context.Context, p *model.Projection) error {
	dctx, cancel := s.timeout.ctx(ctx)
	defer cancel()
	existing, err := s.projections.ListByAuditorium(dctx, p.AuditoriumID)
	if err != nil {
		return wrap(ErrPersistence, err)
	}
	clash, found := lo.Find(existing, func(e model.Projection) bool {
		return e.ID != p.ID && withinWindow(e.ProjectionTime, p.ProjectionTime, s.window)
	})
	if found {
		s.log.WithFields(logrus.Fields{
			"auditorium_id":  p.AuditoriumID,
			"requested":      p.ProjectionTime,
			"conflicts_with": clash.ID,
		}).Info("projection rejected: overlap")
		return ErrProjectionConflict
	}
	return nil
}

func withinWindow(existing, t time.Time, w time.Duration) bool {
	return t.After(existing.Add(-w)) && t.Before(existing.Add(w))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func countSchedule(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	metrics.ScheduleAttemptsTotal.WithLabelValues(op, outcome).Inc()
}
