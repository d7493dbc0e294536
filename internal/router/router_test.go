package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-projection-booking/internal/handler"
	"github.com/iliyamo/cinema-projection-booking/internal/model"
	"github.com/iliyamo/cinema-projection-booking/internal/service"
	"github.com/iliyamo/cinema-projection-booking/internal/utils"
)

const secret = "router-secret"

type stubProjections struct{}

func (stubProjections) Create(_ context.Context, in service.CreateProjectionInput) (*model.Projection, error) {
	return &model.Projection{ID: uuid.New(), MovieID: in.MovieID, AuditoriumID: in.AuditoriumID, ProjectionTime: in.ProjectionTime}, nil
}

func (stubProjections) Update(_ context.Context, id uuid.UUID, _ service.UpdateProjectionInput) (*model.Projection, error) {
	return &model.Projection{ID: id}, nil
}

func (stubProjections) Delete(_ context.Context, id uuid.UUID) (*model.Projection, error) {
	return &model.Projection{ID: id}, nil
}

func (stubProjections) Get(_ context.Context, id uuid.UUID) (*model.Projection, error) {
	return &model.Projection{ID: id}, nil
}

func (stubProjections) Filter(context.Context, service.ProjectionFilter) ([]model.Projection, error) {
	return nil, nil
}

type stubSeats struct{}

func (stubSeats) BusySeats(context.Context, uuid.UUID) ([]model.Seat, error) { return nil, nil }

func (stubSeats) SeatMap(context.Context, uuid.UUID) ([]service.SeatAvailability, error) {
	return nil, nil
}

func (stubSeats) TicketsForProjection(context.Context, uuid.UUID) ([]model.Ticket, error) {
	return nil, nil
}

type stubTickets struct{}

func (stubTickets) Purchase(_ context.Context, in service.ReserveInput) (*service.PurchaseResult, error) {
	return &service.PurchaseResult{Ticket: &model.Ticket{ID: uuid.New(), SeatID: in.SeatID}}, nil
}

func (stubTickets) GetTicket(_ context.Context, id uuid.UUID) (*model.Ticket, error) {
	return &model.Ticket{ID: id}, nil
}

func (stubTickets) DeleteTicket(_ context.Context, id uuid.UUID) (*model.Ticket, error) {
	return &model.Ticket{ID: id}, nil
}

type nullUsers struct{}

func (nullUsers) GetByUserName(context.Context, string) (*model.User, error) {
	return nil, context.DeadlineExceeded
}

func newServer() *echo.Echo {
	log, _ := logtest.NewNullLogger()
	pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }

	e := echo.New()
	RegisterRoutes(e)
	RegisterAuth(e, &handler.AuthHandler{Users: nullUsers{}, JWTSecret: secret, DBTimeout: time.Second, Now: time.Now, Log: log})
	RegisterProjections(e, handler.NewProjectionHandler(stubProjections{}, stubSeats{}, log), secret, pass)
	RegisterTickets(e, handler.NewTicketHandler(stubTickets{}, stubTickets{}, log), secret, pass)
	return e
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, uuid.New(), "someone", role, time.Hour, time.Now())
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestRoutes(t *testing.T) {
	e := newServer()
	id := uuid.NewString()
	createBody := `{"movie_id":"` + uuid.NewString() + `","auditorium_id":1,"projection_time":"2025-06-01T18:00:00Z"}`
	purchaseBody := `{"projection_id":"` + uuid.NewString() + `","seat_id":"` + uuid.NewString() + `","price":100}`

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		role   string
		code   int
	}{
		{"health", http.MethodGet, "/healthz", "", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"public list", http.MethodGet, "/v1/projections", "", "", http.StatusOK},
		{"public detail", http.MethodGet, "/v1/projections/" + id, "", "", http.StatusOK},
		{"public busy seats", http.MethodGet, "/v1/projections/" + id + "/busy-seats", "", "", http.StatusOK},
		{"public seat map", http.MethodGet, "/v1/projections/" + id + "/seats", "", "", http.StatusOK},
		{"schedule anonymous", http.MethodPost, "/v1/projections", createBody, "", http.StatusUnauthorized},
		{"schedule as user", http.MethodPost, "/v1/projections", createBody, model.RoleUser, http.StatusForbidden},
		{"schedule as admin", http.MethodPost, "/v1/projections", createBody, model.RoleAdmin, http.StatusCreated},
		{"reschedule as admin", http.MethodPut, "/v1/projections/" + id, `{}`, model.RoleAdmin, http.StatusOK},
		{"unschedule as admin", http.MethodDelete, "/v1/projections/" + id, "", model.RoleAdmin, http.StatusOK},
		{"tickets as user", http.MethodGet, "/v1/projections/" + id + "/tickets", "", model.RoleUser, http.StatusForbidden},
		{"tickets as admin", http.MethodGet, "/v1/projections/" + id + "/tickets", "", model.RoleAdmin, http.StatusOK},
		{"purchase anonymous", http.MethodPost, "/v1/tickets", purchaseBody, "", http.StatusUnauthorized},
		{"purchase as user", http.MethodPost, "/v1/tickets", purchaseBody, model.RoleUser, http.StatusCreated},
		{"cancel as admin", http.MethodDelete, "/v1/tickets/" + id, "", model.RoleAdmin, http.StatusOK},
		{"login storage down", http.MethodPost, "/v1/auth/login", `{"user_name":"a","password":"b"}`, "", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			} else {
				req = httptest.NewRequest(tt.method, tt.path, nil)
			}
			if tt.role != "" {
				req.Header.Set("Authorization", bearer(t, tt.role))
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}
