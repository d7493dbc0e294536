package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-projection-booking/internal/handler"
	"github.com/iliyamo/cinema-projection-booking/internal/middleware"
	"github.com/iliyamo/cinema-projection-booking/internal/model"
)

// RegisterTickets registers purchase and cancellation for any
// authenticated user.  Ownership of a ticket is checked in the handler.
func RegisterTickets(e *echo.Echo, h *handler.TicketHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/tickets",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.POST("", h.Purchase, limit)
	g.DELETE("/:id", h.Delete)
}
