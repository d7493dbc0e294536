// Package queue defines the messages exchanged over RabbitMQ together with
// the publisher and the loyalty retry consumer.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Queue names.  Both queues are durable.
const (
	TicketPurchasedQueue = "ticket.purchased"
	LoyaltyCreditQueue   = "loyalty.credit"
)

// TicketPurchasedEvent is published after a purchase whose points were
// credited.  It carries enough for consumers to notify or report without
// reading the database.
type TicketPurchasedEvent struct {
	TicketID     uuid.UUID `json:"ticket_id"`
	ProjectionID uuid.UUID `json:"projection_id"`
	SeatID       uuid.UUID `json:"seat_id"`
	UserID       uuid.UUID `json:"user_id"`
	PriceCents   int64     `json:"price_cents"`
	BonusPoints  int       `json:"bonus_points"`
	PurchasedAt  time.Time `json:"purchased_at"`
}

// LoyaltyCreditRequested asks the consumer to credit points for a ticket
// whose synchronous credit failed.
type LoyaltyCreditRequested struct {
	TicketID    uuid.UUID `json:"ticket_id"`
	UserID      uuid.UUID `json:"user_id"`
	Points      int       `json:"points"`
	RequestedAt time.Time `json:"requested_at"`
}
