// Package middleware provides the request pipeline shared by all routes:
// authentication, authorization, error normalization, rate limiting,
// response caching and request logging.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tourbook/tours-api/internal/model"
	"github.com/tourbook/tours-api/internal/service"
)

// CookieName is the cookie carrying the access token for browser clients.
const CookieName = "jwt"

// LoggedOutValue replaces the token when a user logs out.
const LoggedOutValue = "loggedout"

// Authenticator resolves a raw access token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*model.User, error)
}

// Protect returns an Echo middleware that authenticates the request and
// stores the resolved user in the request context.  The token is read from
// a Bearer Authorization header and, failing that, from the jwt cookie.
// Every failure is returned as an error so the HTTP error handler renders
// it.
func Protect(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// An empty token is rejected by Authenticate with a 401.
			raw := tokenFrom(c.Request())

			u, err := auth.Authenticate(c.Request().Context(), raw)
			if err != nil {
				return err
			}

			// Hand the user to downstream handlers through the request
			// context rather than a mutable echo.Context key.
			c.SetRequest(c.Request().WithContext(service.WithUser(c.Request().Context(), u)))
			return next(c)
		}
	}
}

// tokenFrom extracts the raw access token, preferring the Authorization
// header over the cookie.
func tokenFrom(r *http.Request) string {
	if auth := r.Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if ck, err := r.Cookie(CookieName); err == nil && ck.Value != LoggedOutValue {
		return ck.Value
	}
	return ""
}
