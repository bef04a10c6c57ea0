// Package validation wraps go-playground/validator with the storefront's
// custom tags and AppError formatting.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"storefront/internal/cache"
	"storefront/internal/common/errors"
)

// Validator validates request payloads by struct tags.
type Validator struct {
	validator *validator.Validate
}

// FieldError is a single failed rule, keyed by the JSON field name.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

func New() *Validator {
	v := validator.New()
	registerCustomValidators(v)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{validator: v}
}

// ValidateStruct returns a validation AppError describing every failed field.
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.validator.Struct(s); err != nil {
		return v.format(err)
	}
	return nil
}

func (v *Validator) ValidateVar(field interface{}, tag string) error {
	if err := v.validator.Var(field, tag); err != nil {
		return v.format(err)
	}
	return nil
}

// Fields lists the failed rules of s, or nil when s is valid.
func (v *Validator) Fields(s interface{}) []FieldError {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}
	return extract(err)
}

func (v *Validator) format(err error) error {
	fields := extract(err)
	if len(fields) == 1 {
		return errors.ValidationError(fields[0].Message)
	}

	messages := make([]string, len(fields))
	for i, f := range fields {
		messages[i] = f.Message
	}
	return errors.ValidationError(fmt.Sprintf("validation failed: %s", strings.Join(messages, "; ")))
}

func extract(err error) []FieldError {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "unknown", Tag: "error", Message: err.Error()}}
	}

	fields := make([]FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe),
		})
	}
	return fields
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", fe.Field())
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("field '%s' must be greater than or equal to %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("field '%s' must be less than or equal to %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("field '%s' must be a valid URL", fe.Field())
	case "category":
		return fmt.Sprintf("field '%s' must be a cache category (%s)", fe.Field(), categoryList())
	case "slug":
		return fmt.Sprintf("field '%s' must contain only lowercase letters, digits and dashes", fe.Field())
	default:
		return fmt.Sprintf("field '%s' failed validation: %s", fe.Field(), fe.Tag())
	}
}

func registerCustomValidators(v *validator.Validate) {
	v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, ok := cache.ParseCategory(fl.Field().String())
		return ok
	})

	v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return false
		}
		for _, r := range s {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
				return false
			}
		}
		return true
	})
}

func categoryList() string {
	names := make([]string, 0, len(cache.Categories()))
	for _, c := range cache.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

var (
	defaultValidator *Validator
	once             sync.Once
)

// Default returns the process-wide validator.
func Default() *Validator {
	once.Do(func() { defaultValidator = New() })
	return defaultValidator
}

// ValidateStruct validates s with the process-wide validator.
func ValidateStruct(s interface{}) error {
	return Default().ValidateStruct(s)
}

// ValidateVar validates a single value with the process-wide validator.
func ValidateVar(field interface{}, tag string) error {
	return Default().ValidateVar(field, tag)
}
