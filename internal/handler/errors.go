package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-projection-booking/internal/service"
)

// statusFor maps a service error kind to an HTTP status.
func statusFor(k service.Kind) int {
	switch k {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindValidationMismatch:
		return http.StatusUnprocessableEntity
	case service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindPaymentDeclined:
		return http.StatusPaymentRequired
	case service.KindPersistence:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err with its stable message and kind.  Infrastructure
// failures are logged with their cause; the client only sees the message.
func writeError(c echo.Context, log logrus.FieldLogger, err error) error {
	k := service.KindOf(err)
	if k == service.KindPersistence || k == service.KindUnknown {
		log.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return c.JSON(statusFor(k), echo.Map{"error": service.Message(err), "kind": k.String()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "kind": service.KindInvalidInput.String()})
}
