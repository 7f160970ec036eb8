package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	pkgerrors "familytree/pkg/errors"
)

var (
	instance *validator.Validate
	once     sync.Once

	hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
)

// Get returns the shared validator, configured on first use
func Get() *validator.Validate {
	once.Do(func() {
		instance = validator.New()

		// Use JSON tag names in error messages
		instance.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = instance.RegisterValidation("color", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || hexColor.MatchString(s)
		})
		_ = instance.RegisterValidation("personid", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || !strings.Contains(s, "-")
		})
	})
	return instance
}

// ValidateStruct validates a struct based on its validation tags and
// returns a VALIDATION AppError carrying one entry per failing field.
func ValidateStruct(s interface{}) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return pkgerrors.NewValidationError(err.Error())
	}

	appErr := pkgerrors.NewValidationError("invalid input")
	for _, e := range validationErrors {
		appErr = appErr.WithField(e.Field(), formatFieldError(e))
	}
	return appErr
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "color":
		return "must be a hex color"
	case "personid":
		return "must not contain '-'"
	case "nefield":
		return fmt.Sprintf("must differ from %s", e.Param())
	default:
		return "is invalid"
	}
}
