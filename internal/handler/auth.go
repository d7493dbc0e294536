package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-projection-booking/internal/model"
	"github.com/iliyamo/cinema-projection-booking/internal/repository"
	"github.com/iliyamo/cinema-projection-booking/internal/utils"
)

// UserFinder resolves users by login name.
type UserFinder interface {
	GetByUserName(ctx context.Context, userName string) (*model.User, error)
}

// AuthHandler issues access tokens.  Users are provisioned outside this
// service.
type AuthHandler struct {
	Users     UserFinder
	JWTSecret string
	AccessTTL time.Duration
	DBTimeout time.Duration
	// DecoyHash is checked for unknown users; see utils.DecoyHash.
	DecoyHash string
	Now       func() time.Time
	Log       logrus.FieldLogger
}

type loginReq struct {
	UserName string `json:"user_name"`
	Password string `json:"password"`
}

type userPart struct {
	ID          string `json:"id"`
	UserName    string `json:"user_name"`
	Role        string `json:"role"`
	BonusPoints int    `json:"bonus_points"`
}

type loginResp struct {
	User   userPart          `json:"user"`
	Access utils.AccessToken `json:"access"`
}

// Login handles POST /v1/auth/login.  Unknown users and wrong passwords
// get the same 401.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.UserName = strings.TrimSpace(req.UserName)
	if req.UserName == "" || req.Password == "" {
		return badRequest(c, "user_name/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.DBTimeout)
	defer cancel()

	u, err := h.Users.GetByUserName(ctx, req.UserName)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			utils.VerifyPassword(h.DecoyHash, req.Password)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		h.Log.WithError(err).Error("login: user lookup failed")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "storage unavailable"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.JWTSecret, u.ID, u.UserName, u.Role, h.AccessTTL, h.Now())
	if err != nil {
		h.Log.WithError(err).Error("login: sign token failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, loginResp{
		User:   userPart{ID: u.ID.String(), UserName: u.UserName, Role: u.Role, BonusPoints: u.BonusPoints},
		Access: access,
	})
}
