// Package handler contains the HTTP handlers.  Handlers never render
// errors themselves; they return them and the HTTP error handler produces
// the response.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tourbook/tours-api/internal/apperror"
)

// requestTimeout bounds every database round trip made by a handler.
const requestTimeout = 5 * time.Second

// requestContext derives a context with the handler timeout from the
// request context, keeping the authenticated user it carries.
func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// bind decodes the JSON body into v.  Path and query parameters are never
// bound into documents.
func bind(c echo.Context, v any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return apperror.BadRequest("Invalid request body")
	}
	return nil
}

// pathID returns the named path parameter when it is a valid id.
func pathID(c echo.Context, name string) (string, error) {
	v := c.Param(name)
	if _, err := uuid.Parse(v); err != nil {
		return "", apperror.Cast(name, v)
	}
	return v, nil
}

// success writes {"status":"success","data":{key: value}}.
func success(c echo.Context, code int, key string, value any) error {
	return c.JSON(code, echo.Map{
		"status": "success",
		"data":   echo.Map{key: value},
	})
}

// Health reports that the process is serving requests.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
