package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/utils"
)

// Context keys set by JWTAuth.
const (
	CtxStaffID = "staff_id"
	CtxRole    = "role"
)

// JWTAuth validates a Bearer access token and stores the staff id
// (uint64) and role (string) in the echo context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			id, err := strconv.ParseUint(claims.Subject, 10, 64)
			if err != nil || claims.Role == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			c.Set(CtxStaffID, id)
			c.Set(CtxRole, claims.Role)
			return next(c)
		}
	}
}

// StaffID returns the authenticated staff id, if any.
func StaffID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(CtxStaffID).(uint64)
	return id, ok
}
