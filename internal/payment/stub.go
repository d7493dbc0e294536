// Package payment holds the payment gateway used in front of seat
// purchases.  Real card processing is out of scope; the stub answers
// every request the same way.
package payment

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-projection-booking/internal/service"
)

// Stub approves or declines every authorisation depending on approve.
type Stub struct {
	approve bool
	log     logrus.FieldLogger
}

func NewStub(approve bool, log logrus.FieldLogger) *Stub {
	return &Stub{approve: approve, log: log}
}

func (s *Stub) Authorize(ctx context.Context, req service.PaymentRequest) (service.PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return service.PaymentResult{}, err
	}
	s.log.WithFields(logrus.Fields{
		"user":      req.UserName,
		"amount":    req.AmountCents,
		"reference": req.Reference,
		"approved":  s.approve,
	}).Debug("payment authorisation")
	if !s.approve {
		return service.PaymentResult{Approved: false, Message: "declined by gateway"}, nil
	}
	return service.PaymentResult{Approved: true, Message: "approved"}, nil
}

func (s *Stub) Void(ctx context.Context, reference string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.WithField("reference", reference).Info("payment voided")
	return nil
}
