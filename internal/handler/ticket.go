package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-projection-booking/internal/middleware"
	"github.com/iliyamo/cinema-projection-booking/internal/model"
	"github.com/iliyamo/cinema-projection-booking/internal/service"
)

// Purchaser runs a full purchase.
type Purchaser interface {
	Purchase(ctx context.Context, in service.ReserveInput) (*service.PurchaseResult, error)
}

// TicketService looks up and cancels tickets.
type TicketService interface {
	GetTicket(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	DeleteTicket(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
}

// TicketHandler serves /v1/tickets for authenticated users.
type TicketHandler struct {
	Purchases Purchaser
	Tickets   TicketService
	Log       logrus.FieldLogger
}

func NewTicketHandler(p Purchaser, t TicketService, log logrus.FieldLogger) *TicketHandler {
	if p == nil || t == nil {
		panic("nil service passed to NewTicketHandler")
	}
	return &TicketHandler{Purchases: p, Tickets: t, Log: log}
}

type purchaseReq struct {
	ProjectionID uuid.UUID `json:"projection_id"`
	SeatID       uuid.UUID `json:"seat_id"`
	Price        int64     `json:"price"`
}

type purchaseResp struct {
	Ticket      *model.Ticket `json:"ticket"`
	BonusPoints int           `json:"bonus_points"`
	// LoyaltyPending is set when the ticket was sold but the points are
	// still to be credited.
	LoyaltyPending bool   `json:"loyalty_pending,omitempty"`
	Warning        string `json:"warning,omitempty"`
}

// Purchase handles POST /v1/tickets.  The buyer is the authenticated
// user.  A sale whose loyalty credit failed is still 201 but carries
// loyalty_pending and a warning.
func (h *TicketHandler) Purchase(c echo.Context) error {
	userName := middleware.UserName(c)
	if userName == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req purchaseReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.ProjectionID == uuid.Nil || req.SeatID == uuid.Nil {
		return badRequest(c, "projection_id and seat_id are required")
	}

	res, err := h.Purchases.Purchase(c.Request().Context(), service.ReserveInput{
		SeatID:       req.SeatID,
		ProjectionID: req.ProjectionID,
		Price:        req.Price,
		UserName:     userName,
	})
	if err != nil {
		if service.KindOf(err) == service.KindPartialSuccess && res != nil {
			h.Log.WithError(err).WithField("ticket_id", res.Ticket.ID).Warn("purchase completed without loyalty credit")
			return c.JSON(http.StatusCreated, purchaseResp{
				Ticket:         res.Ticket,
				LoyaltyPending: true,
				Warning:        service.Message(err),
			})
		}
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, purchaseResp{Ticket: res.Ticket, BonusPoints: res.BonusPoints})
}

// Delete handles DELETE /v1/tickets/:id.  Users may cancel their own
// tickets; admins may cancel any.
func (h *TicketHandler) Delete(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid ticket id")
	}

	ctx := c.Request().Context()
	t, err := h.Tickets.GetTicket(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if t.UserID != uid && middleware.Role(c) != model.RoleAdmin {
		// Do not reveal other users' tickets.
		return writeError(c, h.Log, service.ErrTicketNotFound)
	}

	deleted, err := h.Tickets.DeleteTicket(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrTicketNotCancellable) {
			h.Log.WithField("ticket_id", id).Info("cancellation refused")
		}
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, deleted)
}
