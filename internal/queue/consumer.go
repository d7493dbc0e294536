package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Crediter applies a loyalty credit.  It must be idempotent per ticket.
type Crediter interface {
	CreditPoints(ctx context.Context, userID, ticketID uuid.UUID, amount int) (int, error)
}

// LoyaltyConsumer drains the loyalty.credit queue.  A failed credit is
// requeued after RetryDelay; malformed messages are dropped.
type LoyaltyConsumer struct {
	URL        string
	Crediter   Crediter
	Log        logrus.FieldLogger
	RetryDelay time.Duration
}

// Run consumes until ctx is done, reconnecting with exponential backoff
// when the broker goes away.
func (c *LoyaltyConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.WithError(err).WithField("retry_in", backoff).Warn("loyalty-consumer: dial failed")
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.Log.WithError(err).Warn("loyalty-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *LoyaltyConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.Log.WithError(err).Warn("loyalty-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(LoyaltyCreditQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(LoyaltyCreditQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.deliver(ctx, d)
		}
	}
}

// acker is the part of amqp.Delivery the handler needs.
type acker interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *LoyaltyConsumer) deliver(ctx context.Context, d amqp.Delivery) {
	c.handle(ctx, d.Body, &d)
}

func (c *LoyaltyConsumer) handle(ctx context.Context, body []byte, a acker) {
	var msg LoyaltyCreditRequested
	if err := json.Unmarshal(body, &msg); err != nil || msg.TicketID == uuid.Nil {
		c.Log.WithError(err).Error("loyalty-consumer: malformed message dropped")
		_ = a.Nack(false, false)
		return
	}
	log := c.Log.WithField("ticket_id", msg.TicketID)

	total, err := c.Crediter.CreditPoints(ctx, msg.UserID, msg.TicketID, msg.Points)
	if err != nil {
		log.WithError(err).Warn("loyalty-consumer: credit failed; requeueing")
		sleep(ctx, c.RetryDelay)
		_ = a.Nack(false, true)
		return
	}
	log.WithField("bonus_points", total).Info("loyalty-consumer: credit applied")
	_ = a.Ack(false)
}

// sleep waits for d or ctx, reporting whether the full delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
