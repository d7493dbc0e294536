package router // package router registers the HTTP routes of the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/cinema-projection-booking/internal/handler"
)

// RegisterRoutes registers the unauthenticated operational endpoints:
// the health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the login endpoint.  Tokens it issues are
// checked by middleware.JWTAuth on the protected groups.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
}
