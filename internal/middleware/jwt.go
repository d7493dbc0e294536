package middleware // middleware contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-projection-booking/internal/utils"
)

// JWTAuth validates a Bearer access token and stores the user id, user
// name and role in the request context.  Handlers read them with UserID,
// UserName and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			// ParseAccessToken has already checked the subject is a uuid.
			c.Set(ctxUserID, uuid.MustParse(claims.Subject))
			c.Set(ctxUserName, claims.UserName)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}
