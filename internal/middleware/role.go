package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/tourbook/tours-api/internal/apperror"
	"github.com/tourbook/tours-api/internal/service"
)

// RestrictTo returns a middleware function that enforces that the
// authenticated user holds one of the given roles.  It must run after
// Protect; a request without a user in its context is treated as
// unauthenticated.
func RestrictTo(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := service.UserFrom(c.Request().Context())
			if !ok {
				return apperror.Unauthenticated("You are not logged in! Please log in to get access.")
			}
			if !u.HasRole(roles...) {
				return apperror.Forbidden("You do not have permission to perform this action")
			}
			return next(c)
		}
	}
}
