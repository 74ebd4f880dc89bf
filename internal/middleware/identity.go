package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/tourbook/tours-api/internal/service"
)

// userID returns the id of the authenticated user, or "anon" when the
// request has not passed through Protect.
func userID(c echo.Context) string {
	if id, ok := resolvedUser(c); ok {
		return id
	}
	return "anon"
}

// resolvedUser reports the authenticated user's id, if any.
func resolvedUser(c echo.Context) (string, bool) {
	if u, ok := service.UserFrom(c.Request().Context()); ok && u.ID != "" {
		return u.ID, true
	}
	return "", false
}
