package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-projection-booking/internal/metrics"
	"github.com/iliyamo/cinema-projection-booking/internal/model"
	"github.com/iliyamo/cinema-projection-booking/internal/queue"
)

// PaymentRequest is what the gateway is asked to authorise.
type PaymentRequest struct {
	UserName    string
	AmountCents int64
	Reference   string
}

// PaymentResult is the gateway's yes/no answer with a message.
type PaymentResult struct {
	Approved bool
	Message  string
}

// PaymentGateway authorises a payment.  An error means the gateway could
// not be reached, not that the payment was declined.  Void releases an
// authorisation that was never turned into a ticket.
type PaymentGateway interface {
	Authorize(ctx context.Context, req PaymentRequest) (PaymentResult, error)
	Void(ctx context.Context, reference string) error
}

// EventPublisher sends purchase events to the broker.
type EventPublisher interface {
	PublishTicketPurchased(ctx context.Context, ev queue.TicketPurchasedEvent) error
	PublishLoyaltyCreditRequested(ctx context.Context, ev queue.LoyaltyCreditRequested) error
}

// PurchaseResult is a committed ticket and the buyer's point balance
// after the credit.  BonusPoints is zero when the credit failed.
type PurchaseResult struct {
	Ticket      *model.Ticket `json:"ticket"`
	BonusPoints int           `json:"bonus_points"`
}

// ReservationOrchestrator runs a purchase: payment, then the ticket, then
// the loyalty credit.  The ticket is never rolled back; a failed credit is
// reported as ErrBonusPointsFailed alongside the ticket and queued for
// retry.
type ReservationOrchestrator struct {
	payments  PaymentGateway
	engine    *SeatReservationEngine
	ledger    *LoyaltyLedger
	publisher EventPublisher
	now       func() time.Time
	log       logrus.FieldLogger
}

func NewReservationOrchestrator(
	payments PaymentGateway,
	engine *SeatReservationEngine,
	ledger *LoyaltyLedger,
	publisher EventPublisher,
	now func() time.Time,
	log logrus.FieldLogger,
) *ReservationOrchestrator {
	if now == nil {
		now = time.Now
	}
	return &ReservationOrchestrator{
		payments:  payments,
		engine:    engine,
		ledger:    ledger,
		publisher: publisher,
		now:       now,
		log:       log,
	}
}

// Purchase buys one seat.  When the error's kind is KindPartialSuccess the
// returned result is non-nil and holds the committed ticket.
func (o *ReservationOrchestrator) Purchase(ctx context.Context, in ReserveInput) (*PurchaseResult, error) {
	if in.Price < 0 {
		return nil, invalid("price must not be negative")
	}

	ref := fmt.Sprintf("%s/%s/%s", in.ProjectionID, in.SeatID, uuid.NewString())
	pay, err := o.payments.Authorize(ctx, PaymentRequest{
		UserName:    in.UserName,
		AmountCents: in.Price,
		Reference:   ref,
	})
	if err != nil {
		return nil, wrap(ErrPaymentGateway, err)
	}
	if !pay.Approved {
		o.log.WithField("user", in.UserName).WithField("reason", pay.Message).Info("payment declined")
		return nil, fmt.Errorf("%w: %s", ErrPaymentDeclined, pay.Message)
	}

	t, err := o.engine.Reserve(ctx, in)
	if err != nil {
		o.voidPayment(ref, in.UserName, err)
		return nil, err
	}
	res := &PurchaseResult{Ticket: t}
	log := o.log.WithField("ticket_id", t.ID)

	points := o.ledger.PointsPerTicket()
	total, err := o.ledger.CreditPoints(ctx, t.UserID, t.ID, points)
	if err != nil {
		metrics.LoyaltyCreditFailures.Inc()
		log.WithError(err).Warn("loyalty credit failed; queueing retry")
		retry := queue.LoyaltyCreditRequested{
			TicketID:    t.ID,
			UserID:      t.UserID,
			Points:      points,
			RequestedAt: o.now().UTC(),
		}
		if perr := o.publisher.PublishLoyaltyCreditRequested(ctx, retry); perr != nil {
			log.WithError(perr).Error("loyalty retry not queued; left for reconciliation")
		}
		return res, wrap(ErrBonusPointsFailed, err)
	}
	res.BonusPoints = total

	ev := queue.TicketPurchasedEvent{
		TicketID:     t.ID,
		ProjectionID: t.ProjectionID,
		SeatID:       t.SeatID,
		UserID:       t.UserID,
		PriceCents:   t.Price,
		BonusPoints:  total,
		PurchasedAt:  o.now().UTC(),
	}
	if err := o.publisher.PublishTicketPurchased(ctx, ev); err != nil {
		log.WithError(err).Warn("ticket.purchased not published")
	}
	return res, nil
}

// voidPayment releases an approved authorisation whose ticket was not
// written.  The caller's context may already be done, so it gets its own.
func (o *ReservationOrchestrator) voidPayment(ref, user string, cause error) {
	log := o.log.WithFields(logrus.Fields{"reference": ref, "user": user})
	log.WithError(cause).Warn("reservation failed after payment approval; voiding")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.payments.Void(ctx, ref); err != nil {
		log.WithError(err).Error("payment void failed; left for reconciliation")
	}
}
