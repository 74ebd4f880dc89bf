package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"runtime/debug"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tourbook/tours-api/internal/apperror"
	"github.com/tourbook/tours-api/internal/model"
	"github.com/tourbook/tours-api/internal/repository"
	"github.com/tourbook/tours-api/internal/utils"
)

// MySQL server error numbers that are caused by client input.
const (
	mysqlDuplicateEntry  = 1062
	mysqlNoReferencedRow = 1452
)

var quoted = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'`)

// Normalize converts well-known low level errors into operational errors.
// It returns false when err is unexpected.
func Normalize(err error) (*apperror.Error, bool) {
	if ae, ok := apperror.As(err); ok {
		return ae, true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := model.ValidationMessages(verrs)
		return apperror.Validation("Invalid Input Data. " + strings.Join(msgs, ". ")), true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			value := myErr.Message
			if m := quoted.FindStringSubmatch(myErr.Message); m != nil {
				value = m[1]
			}
			return apperror.Duplicate(value), true
		case mysqlNoReferencedRow:
			return apperror.BadRequest("Referenced document does not exist"), true
		}
		return nil, false
	}

	switch {
	case errors.Is(err, utils.ErrExpiredToken):
		return apperror.Unauthenticated("Token Expired. Please log in again."), true
	case errors.Is(err, utils.ErrInvalidToken):
		return apperror.Unauthenticated("Invalid Token. Please try again."), true
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound("No document found with that ID"), true
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		if he.Code == http.StatusRequestEntityTooLarge {
			msg = "Request body too large"
		}
		return apperror.Wrap(he.Internal, he.Code, msg), true
	}
	return nil, false
}

// ErrorHandler renders every error returned by a handler or middleware.
// In development the response carries the error and a stack trace; in any
// other environment only operational messages reach the client.
func ErrorHandler(development bool, log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		// Groups answer unmatched paths with echo.ErrNotFound.
		if errors.Is(err, echo.ErrNotFound) {
			err = NotFound(c)
		}
		ae, operational := Normalize(err)
		if !operational {
			ae = apperror.Internal("Something went wrong.", err)
			ae.Stack = string(debug.Stack())
		}
		if ae.Status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Bool("operational", operational),
				zap.Error(err),
			)
		}

		body := echo.Map{"status": ae.StatusText(), "message": ae.Message}
		if development {
			if !operational {
				body["message"] = err.Error()
			}
			body["error"] = errorDetail(err, ae)
			if ae.Stack != "" {
				body["stack"] = ae.Stack
			}
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(ae.Status)
		} else {
			werr = c.JSON(ae.Status, body)
		}
		if werr != nil {
			log.Error("writing error response", zap.Error(werr))
		}
	}
}

func errorDetail(err error, ae *apperror.Error) echo.Map {
	return echo.Map{
		"kind":       ae.Kind,
		"statusCode": ae.Status,
		"cause":      fmt.Sprint(err),
	}
}

// NotFound answers routes that match nothing.
func NotFound(c echo.Context) error {
	return apperror.NotFound(fmt.Sprintf("%s does not exist", c.Request().RequestURI))
}
