package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-projection-booking/internal/model"
	"github.com/iliyamo/cinema-projection-booking/internal/service"
)

// ProjectionService is the scheduling surface used by ProjectionHandler.
type ProjectionService interface {
	Create(ctx context.Context, in service.CreateProjectionInput) (*model.Projection, error)
	Update(ctx context.Context, id uuid.UUID, in service.UpdateProjectionInput) (*model.Projection, error)
	Delete(ctx context.Context, id uuid.UUID) (*model.Projection, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Projection, error)
	Filter(ctx context.Context, f service.ProjectionFilter) ([]model.Projection, error)
}

// SeatQueries are the read paths over sold seats.
type SeatQueries interface {
	BusySeats(ctx context.Context, projectionID uuid.UUID) ([]model.Seat, error)
	SeatMap(ctx context.Context, projectionID uuid.UUID) ([]service.SeatAvailability, error)
	TicketsForProjection(ctx context.Context, projectionID uuid.UUID) ([]model.Ticket, error)
}

// ProjectionHandler serves /v1/projections.  Writes require the ADMIN
// role, which the router enforces.
type ProjectionHandler struct {
	Projections ProjectionService
	Seats       SeatQueries
	Log         logrus.FieldLogger
}

func NewProjectionHandler(p ProjectionService, s SeatQueries, log logrus.FieldLogger) *ProjectionHandler {
	if p == nil || s == nil {
		panic("nil service passed to NewProjectionHandler")
	}
	return &ProjectionHandler{Projections: p, Seats: s, Log: log}
}

type createProjectionReq struct {
	MovieID        uuid.UUID `json:"movie_id"`
	AuditoriumID   int       `json:"auditorium_id"`
	ProjectionTime time.Time `json:"projection_time"`
}

type updateProjectionReq struct {
	MovieID        *uuid.UUID `json:"movie_id"`
	AuditoriumID   *int       `json:"auditorium_id"`
	ProjectionTime *time.Time `json:"projection_time"`
}

// Create handles POST /v1/projections.
func (h *ProjectionHandler) Create(c echo.Context) error {
	var req createProjectionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	p, err := h.Projections.Create(c.Request().Context(), service.CreateProjectionInput{
		MovieID:        req.MovieID,
		AuditoriumID:   req.AuditoriumID,
		ProjectionTime: req.ProjectionTime,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// Update handles PUT /v1/projections/:id.  Omitted fields are unchanged.
func (h *ProjectionHandler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid projection id")
	}
	var req updateProjectionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	p, err := h.Projections.Update(c.Request().Context(), id, service.UpdateProjectionInput{
		MovieID:        req.MovieID,
		AuditoriumID:   req.AuditoriumID,
		ProjectionTime: req.ProjectionTime,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /v1/projections/:id and returns the removed
// projection.
func (h *ProjectionHandler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid projection id")
	}
	p, err := h.Projections.Delete(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Get handles GET /v1/projections/:id.
func (h *ProjectionHandler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid projection id")
	}
	p, err := h.Projections.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// List handles GET /v1/projections with the optional query parameters
// cinema_id, auditorium_id, movie_id and date (YYYY-MM-DD).
func (h *ProjectionHandler) List(c echo.Context) error {
	var f service.ProjectionFilter
	if v := c.QueryParam("cinema_id"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return badRequest(c, "invalid cinema_id")
		}
		f.CinemaID = &n
	}
	if v := c.QueryParam("auditorium_id"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return badRequest(c, "invalid auditorium_id")
		}
		f.AuditoriumID = &n
	}
	if v := c.QueryParam("movie_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest(c, "invalid movie_id")
		}
		f.MovieID = &id
	}
	if v := c.QueryParam("date"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return badRequest(c, "invalid date, want YYYY-MM-DD")
		}
		f.Date = &d
	}

	items, err := h.Projections.Filter(c.Request().Context(), f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if items == nil {
		items = []model.Projection{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// BusySeats handles GET /v1/projections/:id/busy-seats.  The answer is a
// snapshot; a later purchase may still find a seat taken.
func (h *ProjectionHandler) BusySeats(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid projection id")
	}
	seats, err := h.Seats.BusySeats(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"projection_id": id, "seats": seats})
}

// SeatMap handles GET /v1/projections/:id/seats: every seat of the
// auditorium with a busy flag.
func (h *ProjectionHandler) SeatMap(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid projection id")
	}
	seats, err := h.Seats.SeatMap(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"projection_id": id, "seats": seats})
}

// Tickets handles GET /v1/projections/:id/tickets.
func (h *ProjectionHandler) Tickets(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid projection id")
	}
	tickets, err := h.Seats.TicketsForProjection(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": tickets})
}
