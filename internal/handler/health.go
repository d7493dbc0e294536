package handler // package handler contains the HTTP handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness probe used by load balancers.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
