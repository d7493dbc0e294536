package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const defaultDialTimeout = 2 * time.Second

// Publisher sends JSON messages to durable queues on the default
// exchange.  It dials per publish; purchase volume does not justify a
// pooled connection.  The dial is bounded by dialTimeout or the context
// deadline, whichever is sooner.
type Publisher struct {
	url         string
	dialTimeout time.Duration
	log         logrus.FieldLogger
}

func NewPublisher(url string, dialTimeout time.Duration, log logrus.FieldLogger) *Publisher {
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	return &Publisher{url: url, dialTimeout: dialTimeout, log: log}
}

func (p *Publisher) PublishTicketPurchased(ctx context.Context, ev TicketPurchasedEvent) error {
	return p.publish(ctx, TicketPurchasedQueue, ev)
}

func (p *Publisher) PublishLoyaltyCreditRequested(ctx context.Context, ev LoyaltyCreditRequested) error {
	return p.publish(ctx, LoyaltyCreditQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queueName string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", queueName, err)
	}

	timeout := p.dialTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("rabbitmq dial: %w", context.DeadlineExceeded)
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", queueName, err)
	}

	err = ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", queueName, err)
	}
	p.log.WithField("queue", queueName).Debug("message published")
	return nil
}
