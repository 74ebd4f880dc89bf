package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so messages match the API surface.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return lowerFirst(f.Name)
		}
		return name
	})
	v.RegisterStructValidation(tourStructLevel, Tour{})
	return v
}

// priceDiscount is compared against price, which validator tags cannot
// express for an optional pointer field.
func tourStructLevel(sl validator.StructLevel) {
	t := sl.Current().Interface().(Tour)
	if t.PriceDiscount != nil && *t.PriceDiscount >= t.Price {
		sl.ReportError(*t.PriceDiscount, "priceDiscount", "PriceDiscount", "ltprice", "")
	}
}

// Validate runs struct validation on v.  The returned error, when not nil,
// is a validator.ValidationErrors.
func Validate(v any) error {
	return validate.Struct(v)
}

// ValidationMessages renders validation failures as human readable
// sentences.  It returns nil when err is not a validation error.
func ValidationMessages(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		out = append(out, message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", f)
	case "email":
		return "Please provide a valid email"
	case "eqfield":
		return "Passwords are not the same!"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must have at least %s characters", f, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", f, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must have at most %s characters", f, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", f, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", f, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", f, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", f, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be either %s", f, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "uuid":
		return fmt.Sprintf("%s must be a valid id", f)
	case "ltprice":
		return "Price discount must be less than price"
	}
	return fmt.Sprintf("%s is invalid (%s)", f, fe.Tag())
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
