package model

import (
	"time"

	"github.com/google/uuid"
)

// LoyaltyCredit records that the points for one ticket were added to a
// user's balance.  The ticket id is the primary key so a ticket can be
// credited at most once.
type LoyaltyCredit struct {
	TicketID  uuid.UUID // loyalty_credits.ticket_id
	UserID    uuid.UUID // loyalty_credits.user_id
	Points    int       // loyalty_credits.points
	CreatedAt time.Time // loyalty_credits.created_at
}
