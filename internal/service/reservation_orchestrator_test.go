package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-projection-booking/internal/lock"
	"github.com/iliyamo/cinema-projection-booking/internal/queue"
)

func newOrchestrator(f *fixture) (*ReservationOrchestrator, *mockPayments, *mockPublisher) {
	pay := &mockPayments{}
	pub := &mockPublisher{}
	o := NewReservationOrchestrator(pay, f.engine, f.ledger, pub, func() time.Time { return f.now }, nullLogger())
	return o, pay, pub
}

func (f *fixture) purchaseInput() ReserveInput {
	return ReserveInput{SeatID: f.s1.ID, ProjectionID: f.p1.ID, Price: 1200, UserName: f.user.UserName}
}

func TestPurchase_Success(t *testing.T) {
	f := newFixture(lock.NewLocal())
	o, pay, pub := newOrchestrator(f)
	ctx := context.Background()

	pay.On("Authorize", ctx, mock.MatchedBy(func(r PaymentRequest) bool {
		return r.AmountCents == 1200 && r.UserName == f.user.UserName
	})).Return(PaymentResult{Approved: true}, nil).Once()
	pub.On("PublishTicketPurchased", ctx, mock.MatchedBy(func(ev queue.TicketPurchasedEvent) bool {
		return ev.SeatID == f.s1.ID && ev.BonusPoints == 10
	})).Return(nil).Once()

	res, err := o.Purchase(ctx, f.purchaseInput())
	require.NoError(t, err)
	assert.Equal(t, f.s1.ID, res.Ticket.SeatID)
	assert.Equal(t, 10, res.BonusPoints)
	assert.Equal(t, 10, f.loyalty.totals[f.user.ID])

	pay.AssertExpectations(t)
	pay.AssertNotCalled(t, "Void", mock.Anything, mock.Anything)
	pub.AssertExpectations(t)
	pub.AssertNotCalled(t, "PublishLoyaltyCreditRequested", mock.Anything, mock.Anything)
}

func TestPurchase_PaymentDeclined(t *testing.T) {
	f := newFixture(lock.NewLocal())
	o, pay, pub := newOrchestrator(f)

	pay.On("Authorize", mock.Anything, mock.Anything).Return(PaymentResult{Approved: false, Message: "card expired"}, nil)

	res, err := o.Purchase(context.Background(), f.purchaseInput())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Contains(t, err.Error(), "card expired")
	assert.Equal(t, KindPaymentDeclined, KindOf(err))
	assert.Zero(t, f.tickets.count())
	pay.AssertNotCalled(t, "Void", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "PublishTicketPurchased", mock.Anything, mock.Anything)
}

func TestPurchase_GatewayUnavailable(t *testing.T) {
	f := newFixture(lock.NewLocal())
	o, pay, _ := newOrchestrator(f)
	pay.On("Authorize", mock.Anything, mock.Anything).Return(PaymentResult{}, errors.New("dial tcp: refused"))

	_, err := o.Purchase(context.Background(), f.purchaseInput())
	assert.ErrorIs(t, err, ErrPaymentGateway)
	assert.Zero(t, f.tickets.count())
}

func TestPurchase_ReservationFailureVoidsPayment(t *testing.T) {
	f := newFixture(lock.NewLocal())
	o, pay, pub := newOrchestrator(f)

	var authorised string
	pay.On("Authorize", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		authorised = args.Get(1).(PaymentRequest).Reference
	}).Return(PaymentResult{Approved: true}, nil)
	pay.On("Void", mock.Anything, mock.Anything).Return(nil).Once()

	in := f.purchaseInput()
	in.SeatID = f.s3.ID
	res, err := o.Purchase(context.Background(), in)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrAuditoriumMismatch)
	assert.Zero(t, f.loyalty.totals[f.user.ID])
	pub.AssertNotCalled(t, "PublishTicketPurchased", mock.Anything, mock.Anything)

	pay.AssertExpectations(t)
	require.NotEmpty(t, authorised)
	pay.AssertCalled(t, "Void", mock.Anything, authorised)
}

func TestPurchase_VoidFailureKeepsReservationError(t *testing.T) {
	f := newFixture(lock.NewLocal())
	o, pay, _ := newOrchestrator(f)
	_, err := f.reserve(f.s1)
	require.NoError(t, err)

	pay.On("Authorize", mock.Anything, mock.Anything).Return(PaymentResult{Approved: true}, nil)
	pay.On("Void", mock.Anything, mock.Anything).Return(errors.New("gateway down")).Once()

	_, err = o.Purchase(context.Background(), f.purchaseInput())
	assert.ErrorIs(t, err, ErrSeatAlreadyTaken)
	pay.AssertExpectations(t)
}

func TestPurchase_ReferenceUniquePerAttempt(t *testing.T) {
	f := newFixture(lock.NewLocal())
	o, pay, _ := newOrchestrator(f)

	var refs []string
	pay.On("Authorize", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		refs = append(refs, args.Get(1).(PaymentRequest).Reference)
	}).Return(PaymentResult{Approved: false, Message: "no"}, nil)

	_, _ = o.Purchase(context.Background(), f.purchaseInput())
	_, _ = o.Purchase(context.Background(), f.purchaseInput())
	require.Len(t, refs, 2)
	assert.NotEqual(t, refs[0], refs[1])
}

func TestPurchase_PartialSuccessKeepsTicket(t *testing.T) {
	f := newFixture(lock.NewLocal())
	o, pay, pub := newOrchestrator(f)
	f.loyalty.err = errStore

	pay.On("Authorize", mock.Anything, mock.Anything).Return(PaymentResult{Approved: true}, nil)
	pub.On("PublishLoyaltyCreditRequested", mock.Anything, mock.MatchedBy(func(ev queue.LoyaltyCreditRequested) bool {
		return ev.UserID == f.user.ID && ev.Points == 10
	})).Return(nil).Once()

	res, err := o.Purchase(context.Background(), f.purchaseInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBonusPointsFailed)
	assert.ErrorIs(t, err, ErrLoyaltyCredit)
	assert.Equal(t, KindPartialSuccess, KindOf(err))
	require.NotNil(t, res)
	assert.Equal(t, f.s1.ID, res.Ticket.SeatID)
	assert.Zero(t, res.BonusPoints)
	assert.Equal(t, 1, f.tickets.count())

	pub.AssertExpectations(t)
	pub.AssertNotCalled(t, "PublishTicketPurchased", mock.Anything, mock.Anything)

	// The retry later credits the committed ticket.
	f.loyalty.err = nil
	total, err := f.ledger.CreditPoints(context.Background(), f.user.ID, res.Ticket.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
}

func TestPurchase_PublishFailureDoesNotFailPurchase(t *testing.T) {
	f := newFixture(lock.NewLocal())
	o, pay, pub := newOrchestrator(f)

	pay.On("Authorize", mock.Anything, mock.Anything).Return(PaymentResult{Approved: true}, nil)
	pub.On("PublishTicketPurchased", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	res, err := o.Purchase(context.Background(), f.purchaseInput())
	require.NoError(t, err)
	assert.Equal(t, 10, res.BonusPoints)
}
