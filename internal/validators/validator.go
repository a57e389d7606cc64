// Package validators wraps go-playground/validator with the tags and error
// messages used by request bodies.
package validators

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/anonto42/byteboard/internal/errors"
)

var handlePattern = regexp.MustCompile(`^[a-z0-9._]{3,20}$`)

// Validator validates request structs and reports failures as validation errors.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the custom tags registered.
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// handle: already normalised (no "@", lower case)
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	})

	return &Validator{v: v}
}

// Validate checks s and returns an *errors.Error listing every failed field.
func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !apperrors.As(err, &fieldErrs) {
		return apperrors.Wrap(err, apperrors.CodeValidation, "invalid request")
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		msgs = append(msgs, message(e))
	}
	sort.Strings(msgs)
	return apperrors.Validation(strings.Join(msgs, "; "))
}

// Echo adapts the validator to echo.Validator.
func (v *Validator) Echo() *EchoValidator {
	return &EchoValidator{v: v}
}

// EchoValidator satisfies echo.Validator so handlers can call c.Validate.
type EchoValidator struct {
	v *Validator
}

func (e *EchoValidator) Validate(i any) error {
	return e.v.Validate(i)
}

// NormalizeHandle strips leading "@" characters and lower-cases the handle.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(handle), "@"))
}

// ValidHandle reports whether an already normalised handle is acceptable.
func ValidHandle(handle string) bool {
	return handlePattern.MatchString(handle)
}

func message(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "handle":
		return "Handle must be 3-20 chars and use letters, numbers, dot, or underscore."
	case "oneof":
		return field + " must be one of: " + e.Param()
	case "url":
		return field + " must be a valid URL"
	case "min", "max":
		if e.Kind() == reflect.Int || e.Kind() == reflect.Int64 {
			if field == "age" {
				return "Please enter a valid age between 13 and 120."
			}
			return fmt.Sprintf("%s must be %s %s", field, bound(e.Tag()), e.Param())
		}
		return fmt.Sprintf("%s must be %s %s characters", field, bound(e.Tag()), e.Param())
	default:
		return field + " is invalid"
	}
}

func bound(tag string) string {
	if tag == "min" {
		return "at least"
	}
	return "at most"
}
