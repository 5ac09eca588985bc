package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeExternal     ErrorType = "external"
	ErrorTypeUnavailable  ErrorType = "unavailable"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrPostNotFound = NewDomainError(ErrorTypeNotFound, "post not found", nil)
	ErrUserNotFound = NewDomainError(ErrorTypeNotFound, "user not found", nil)

	// Validation Errors
	ErrInvalidURL      = NewDomainError(ErrorTypeValidation, "invalid URL format", nil)
	ErrInvalidPlatform = NewDomainError(ErrorTypeValidation, "invalid platform", nil)
	ErrArticleParse    = NewDomainError(ErrorTypeValidation, "failed to parse article", nil)

	// Authorization Errors
	ErrInvalidToken = NewDomainError(ErrorTypeUnauthorized, "invalid or expired session", nil)

	// External Provider Errors
	ErrGenerationFailed    = NewDomainError(ErrorTypeExternal, "failed to generate posts", nil)
	ErrProviderUnavailable = NewDomainError(ErrorTypeExternal, "LLM provider unavailable", nil)

	// Unavailable Errors
	ErrHistoryUnavailable   = NewDomainError(ErrorTypeUnavailable, "post history is not available", nil)
	ErrUserStoreUnavailable = NewDomainError(ErrorTypeUnavailable, "user storage is not available", nil)
)

// Error type checking helper functions

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool { return hasType(err, ErrorTypeNotFound) }

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool { return hasType(err, ErrorTypeValidation) }

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool { return hasType(err, ErrorTypeUnauthorized) }

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool { return hasType(err, ErrorTypeForbidden) }

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool { return hasType(err, ErrorTypeRateLimit) }

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool { return hasType(err, ErrorTypeConflict) }

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool { return hasType(err, ErrorTypeInternal) }

// IsExternalError checks if an error is an external provider error
func IsExternalError(err error) bool { return hasType(err, ErrorTypeExternal) }

// IsUnavailableError checks if an error reports a disabled dependency
func IsUnavailableError(err error) bool { return hasType(err, ErrorTypeUnavailable) }

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapExternal wraps an error as an external provider error
func WrapExternal(message string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err)
}

// NewValidationError builds a validation error carrying per-field messages
func NewValidationError(message string, fields map[string]string) *DomainError {
	err := NewDomainError(ErrorTypeValidation, message, nil)
	if len(fields) > 0 {
		err.WithDetail("fields", fields)
	}
	return err
}
