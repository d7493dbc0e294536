package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-projection-booking/internal/metrics"
	"github.com/iliyamo/cinema-projection-booking/internal/model"
)

// UncreditedTickets lists tickets whose points have not been credited.
type UncreditedTickets interface {
	ListUncredited(ctx context.Context, limit int) ([]model.Ticket, error)
}

// LoyaltyLedger credits bonus points for purchased tickets.  Each ticket
// is credited at most once, so retries and reconciliation are safe.
type LoyaltyLedger struct {
	store           LoyaltyStore
	tickets         UncreditedTickets
	pointsPerTicket int
	timeout         dbTimeout
	log             logrus.FieldLogger
}

func NewLoyaltyLedger(store LoyaltyStore, tickets UncreditedTickets, pointsPerTicket int, timeout time.Duration, log logrus.FieldLogger) *LoyaltyLedger {
	return &LoyaltyLedger{
		store:           store,
		tickets:         tickets,
		pointsPerTicket: pointsPerTicket,
		timeout:         dbTimeout(timeout),
		log:             log,
	}
}

// PointsPerTicket is the amount credited for one purchase.
func (l *LoyaltyLedger) PointsPerTicket() int { return l.pointsPerTicket }

// CreditPoints adds amount to the user's balance for ticketID and returns
// the new total.  Crediting the same ticket again returns the current
// total unchanged.  Any failure is reported as ErrLoyaltyCredit.
func (l *LoyaltyLedger) CreditPoints(ctx context.Context, userID, ticketID uuid.UUID, amount int) (int, error) {
	if amount < 0 {
		return 0, invalid("amount must not be negative")
	}
	dctx, cancel := l.timeout.ctx(ctx)
	defer cancel()
	total, err := l.store.Credit(dctx, userID, ticketID, amount)
	if err != nil {
		return 0, wrap(ErrLoyaltyCredit, err)
	}
	return total, nil
}

// Reconcile credits up to limit tickets that have no ledger entry yet and
// returns how many were credited.  A failing ticket is logged and skipped.
func (l *LoyaltyLedger) Reconcile(ctx context.Context, limit int) (int, error) {
	dctx, cancel := l.timeout.ctx(ctx)
	pending, err := l.tickets.ListUncredited(dctx, limit)
	cancel()
	if err != nil {
		return 0, wrap(ErrPersistence, err)
	}

	credited := 0
	for _, t := range pending {
		if ctx.Err() != nil {
			return credited, ctx.Err()
		}
		if _, err := l.CreditPoints(ctx, t.UserID, t.ID, l.pointsPerTicket); err != nil {
			l.log.WithError(err).WithField("ticket_id", t.ID).Warn("reconcile: credit failed")
			continue
		}
		credited++
		metrics.LoyaltyCreditsRetried.Inc()
	}
	if credited > 0 {
		l.log.WithField("credited", credited).Info("reconcile: loyalty credits applied")
	}
	return credited, nil
}
