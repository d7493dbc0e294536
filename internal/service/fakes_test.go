package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/cinema-projection-booking/internal/lock"
	"github.com/iliyamo/cinema-projection-booking/internal/model"
	"github.com/iliyamo/cinema-projection-booking/internal/queue"
	"github.com/iliyamo/cinema-projection-booking/internal/repository"
)

var errStore = errors.New("connection reset")

func nullLogger() logrus.FieldLogger {
	l, _ := logtest.NewNullLogger()
	return l
}

type memSeats struct {
	seats map[uuid.UUID]model.Seat
	block bool
}

func newMemSeats(seats ...model.Seat) *memSeats {
	m := &memSeats{seats: map[uuid.UUID]model.Seat{}}
	for _, s := range seats {
		m.seats[s.ID] = s
	}
	return m
}

func (m *memSeats) ListByAuditorium(_ context.Context, auditoriumID int) ([]model.Seat, error) {
	var out []model.Seat
	for _, s := range m.seats {
		if s.AuditoriumID == auditoriumID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSeats) GetByID(ctx context.Context, id uuid.UUID) (*model.Seat, error) {
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s, ok := m.seats[id]
	if !ok {
		return nil, repository.ErrSeatNotFound
	}
	return &s, nil
}

type memAuditoriums map[int][]model.Auditorium

func (m memAuditoriums) GetByID(_ context.Context, id int) (*model.Auditorium, error) {
	for _, auds := range m {
		for _, a := range auds {
			if a.ID == id {
				return &a, nil
			}
		}
	}
	return nil, repository.ErrAuditoriumNotFound
}

func (m memAuditoriums) ListByCinema(_ context.Context, cinemaID int) ([]model.Auditorium, error) {
	return m[cinemaID], nil
}

type memProjections struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]model.Projection
	order     []uuid.UUID
	err       error
	deleteErr error
	// createDelay stalls Create to stretch the scheduling critical section.
	createDelay time.Duration
}

func newMemProjections() *memProjections {
	return &memProjections{rows: map[uuid.UUID]model.Projection{}}
}

func (m *memProjections) Create(_ context.Context, p *model.Projection) error {
	time.Sleep(m.createDelay)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows[p.ID] = *p
	m.order = append(m.order, p.ID)
	return nil
}

func (m *memProjections) GetByID(_ context.Context, id uuid.UUID) (*model.Projection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrProjectionNotFound
	}
	return &p, nil
}

func (m *memProjections) ListByAuditorium(ctx context.Context, auditoriumID int) ([]model.Projection, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Projection
	for _, p := range all {
		if p.AuditoriumID == auditoriumID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProjections) List(_ context.Context) ([]model.Projection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.Projection, 0, len(m.order))
	for _, id := range m.order {
		if p, ok := m.rows[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProjections) Update(_ context.Context, p *model.Projection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.ID]; !ok {
		return repository.ErrProjectionNotFound
	}
	m.rows[p.ID] = *p
	return nil
}

func (m *memProjections) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.rows[id]; !ok {
		return repository.ErrProjectionNotFound
	}
	delete(m.rows, id)
	return nil
}

// memTickets enforces the (projection, seat) uniqueness the real schema
// has.  hideFromList makes ListByProjection return nothing so the unique
// index is the only guard left.
type memTickets struct {
	mu           sync.Mutex
	rows         map[uuid.UUID]model.Ticket
	listErr      error
	createErr    error
	hideFromList bool
}

func newMemTickets() *memTickets {
	return &memTickets{rows: map[uuid.UUID]model.Ticket{}}
}

func (m *memTickets) Create(_ context.Context, t *model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, r := range m.rows {
		if r.ProjectionID == t.ProjectionID && r.SeatID == t.SeatID {
			return fmt.Errorf("seat %s: %w", t.SeatID, repository.ErrConflict)
		}
	}
	t.CreatedAt = time.Now().UTC()
	m.rows[t.ID] = *t
	return nil
}

func (m *memTickets) GetByID(_ context.Context, id uuid.UUID) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	return &t, nil
}

func (m *memTickets) ListByProjection(_ context.Context, projectionID uuid.UUID) ([]model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.Ticket
	if m.hideFromList {
		return out, nil
	}
	for _, t := range m.rows {
		if t.ProjectionID == projectionID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTickets) ListUncredited(_ context.Context, _ int) ([]model.Ticket, error) {
	return nil, nil
}

func (m *memTickets) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrTicketNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memTickets) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memUsers map[string]model.User

func (m memUsers) GetByUserName(_ context.Context, name string) (*model.User, error) {
	u, ok := m[name]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

// memLoyalty credits once per ticket, like the loyalty_credits table.
type memLoyalty struct {
	mu       sync.Mutex
	totals   map[uuid.UUID]int
	credited map[uuid.UUID]bool
	err      error
}

func newMemLoyalty(users ...uuid.UUID) *memLoyalty {
	m := &memLoyalty{totals: map[uuid.UUID]int{}, credited: map[uuid.UUID]bool{}}
	for _, u := range users {
		m.totals[u] = 0
	}
	return m
}

func (m *memLoyalty) Credit(_ context.Context, userID, ticketID uuid.UUID, points int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	total, ok := m.totals[userID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	if !m.credited[ticketID] {
		m.credited[ticketID] = true
		total += points
		m.totals[userID] = total
	}
	return total, nil
}

type fixedUncredited []model.Ticket

func (f fixedUncredited) ListUncredited(_ context.Context, limit int) ([]model.Ticket, error) {
	if len(f) > limit {
		return f[:limit], nil
	}
	return f, nil
}

// noLock disables the keyed lock so tests can reach the storage guard.
type noLock struct{}

func (noLock) Lock(context.Context, string) (func(), error) { return func() {}, nil }

var _ lock.Locker = noLock{}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishTicketPurchased(ctx context.Context, ev queue.TicketPurchasedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *mockPublisher) PublishLoyaltyCreditRequested(ctx context.Context, ev queue.LoyaltyCreditRequested) error {
	return m.Called(ctx, ev).Error(0)
}

type mockPayments struct{ mock.Mock }

func (m *mockPayments) Authorize(ctx context.Context, req PaymentRequest) (PaymentResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(PaymentResult), args.Error(1)
}

func (m *mockPayments) Void(ctx context.Context, reference string) error {
	return m.Called(ctx, reference).Error(0)
}

// fixture is a small cinema: auditorium 1 with seats S1 and S2, auditorium
// 2 with seat S3, projection P1 in auditorium 1 and one user.
type fixture struct {
	s1, s2, s3  model.Seat
	p1          model.Projection
	user        model.User
	seats       *memSeats
	projections *memProjections
	tickets     *memTickets
	loyalty     *memLoyalty
	now         time.Time

	scheduler *ProjectionScheduler
	engine    *SeatReservationEngine
	ledger    *LoyaltyLedger
}

func newFixture(locker lock.Locker) *fixture {
	f := &fixture{
		s1:   model.Seat{ID: uuid.New(), AuditoriumID: 1, Row: 1, Number: 1},
		s2:   model.Seat{ID: uuid.New(), AuditoriumID: 1, Row: 1, Number: 2},
		s3:   model.Seat{ID: uuid.New(), AuditoriumID: 2, Row: 1, Number: 1},
		user: model.User{ID: uuid.New(), UserName: "jdoe", Role: model.RoleUser},
		now:  time.Date(2025, 5, 30, 12, 0, 0, 0, time.UTC),
	}
	f.p1 = model.Projection{
		ID:             uuid.New(),
		MovieID:        uuid.New(),
		AuditoriumID:   1,
		ProjectionTime: time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC),
	}
	f.seats = newMemSeats(f.s1, f.s2, f.s3)
	f.projections = newMemProjections()
	_ = f.projections.Create(context.Background(), &f.p1)
	f.tickets = newMemTickets()
	f.loyalty = newMemLoyalty(f.user.ID)

	log := nullLogger()
	auds := memAuditoriums{
		10: {{ID: 1, CinemaID: 10, Name: "A1"}},
		20: {{ID: 2, CinemaID: 20, Name: "A2"}},
	}
	f.scheduler = NewProjectionScheduler(f.projections, auds, f.tickets, locker, 3*time.Hour, time.Second, log)
	f.engine = NewSeatReservationEngine(
		NewSeatDirectory(f.seats, time.Second),
		f.scheduler,
		f.tickets,
		memUsers{f.user.UserName: f.user},
		locker,
		func() time.Time { return f.now },
		time.Second,
		log,
	)
	f.ledger = NewLoyaltyLedger(f.loyalty, f.tickets, 10, time.Second, log)
	return f
}

func (f *fixture) reserve(seat model.Seat) (*model.Ticket, error) {
	return f.engine.Reserve(context.Background(), ReserveInput{
		SeatID:       seat.ID,
		ProjectionID: f.p1.ID,
		Price:        1200,
		UserName:     f.user.UserName,
	})
}
