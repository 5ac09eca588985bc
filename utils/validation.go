package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// ValidationError wraps validation errors with structured details
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError from validator.ValidationErrors.
// Fields are keyed by their JSON path, e.g. "platforms[1]".
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string)
	for _, err := range errs {
		field := fieldPath(err.Namespace())
		name := err.Field()
		collection := err.Kind() == reflect.Slice || err.Kind() == reflect.Array

		switch err.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", name)
		case "url", "http_url":
			fields[field] = fmt.Sprintf("%s must be a valid http or https URL", name)
		case "uuid":
			fields[field] = fmt.Sprintf("%s must be a valid UUID", name)
		case "min":
			if collection {
				fields[field] = fmt.Sprintf("%s must contain at least %s items", name, err.Param())
			} else {
				fields[field] = fmt.Sprintf("%s must be at least %s characters", name, err.Param())
			}
		case "max":
			if collection {
				fields[field] = fmt.Sprintf("%s must contain at most %s items", name, err.Param())
			} else {
				fields[field] = fmt.Sprintf("%s must be at most %s characters", name, err.Param())
			}
		case "unique":
			fields[field] = fmt.Sprintf("%s must not contain duplicates", name)
		case "oneof":
			fields[field] = fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(err.Param(), " ", ", "))
		default:
			fields[field] = fmt.Sprintf("%s validation failed on '%s' tag", name, err.Tag())
		}
	}

	return &ValidationError{
		Message: "Validation failed",
		Fields:  fields,
	}
}

// fieldPath drops the struct name from a validator namespace
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// GetValidationFields extracts field errors from a ValidationError
func GetValidationFields(err error) map[string]string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Fields
	}
	return nil
}

// ParseUUID parses a path or query identifier
func ParseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid UUID format: %s", s)
	}
	return id, nil
}
