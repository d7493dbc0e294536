package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ctxUserID   = "user_id"
	ctxUserName = "username"
	ctxRole     = "role"
)

// UserID returns the authenticated user's id, if any.
func UserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(ctxUserID).(uuid.UUID)
	return id, ok
}

// UserName returns the authenticated user's login name or "".
func UserName(c echo.Context) string {
	s, _ := c.Get(ctxUserName).(string)
	return s
}

// Role returns the authenticated user's role or "".
func Role(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}

// identity is the rate limiter's view of the caller: the user id when
// authenticated, "anon" otherwise.
func identity(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return id.String()
	}
	return "anon"
}
