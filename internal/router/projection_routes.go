package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-projection-booking/internal/handler"
	"github.com/iliyamo/cinema-projection-booking/internal/middleware"
	"github.com/iliyamo/cinema-projection-booking/internal/model"
)

// RegisterProjections registers /v1/projections.  Listing, detail and
// busy seats are public so guests can browse before logging in.
// Scheduling and the ticket list need the ADMIN role; limit is applied to
// the scheduling writes.
func RegisterProjections(e *echo.Echo, h *handler.ProjectionHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	e.GET("/v1/projections", h.List)
	e.GET("/v1/projections/:id", h.Get)
	e.GET("/v1/projections/:id/busy-seats", h.BusySeats)
	e.GET("/v1/projections/:id/seats", h.SeatMap)

	admin := e.Group(
		"/v1/projections",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	admin.POST("", h.Create, limit)
	admin.PUT("/:id", h.Update, limit)
	admin.DELETE("/:id", h.Delete, limit)
	admin.GET("/:id/tickets", h.Tickets)
}
