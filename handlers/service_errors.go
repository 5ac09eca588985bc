package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rkbansal/postify/services"
	"github.com/rkbansal/postify/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	message := publicMessage(err)
	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		details = nil
	}

	var writeErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("request deadline exceeded", zap.Error(err))
		writeErr = utils.WriteGatewayTimeout(w, "Generation timed out, please try again")

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, message, details)

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, message)

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, message)

	case services.IsRateLimitError(err):
		writeErr = utils.WriteTooManyRequests(w, message, details)

	case services.IsConflictError(err):
		writeErr = utils.WriteConflict(w, message, details)

	case services.IsExternalError(err):
		// Upstream model failures; the cause is logged, not returned
		logger.Warn("upstream failure", zap.Error(err))
		writeErr = utils.WriteBadGateway(w, message)

	case services.IsUnavailableError(err):
		writeErr = utils.WriteServiceUnavailable(w, message)

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var details map[string]interface{}
	message := err.Error()
	if utils.IsValidationError(err) {
		message = "Validation failed"
		details = map[string]interface{}{"fields": utils.GetValidationFields(err)}
	}
	if err := utils.WriteBadRequest(w, message, details); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// publicMessage returns the client-facing text of a domain error
func publicMessage(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return capitalize(domainErr.Message)
	}
	return err.Error()
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
