// Package observability provides structured logging for Postify.
//
// This package implements:
//   - zap logger construction from LOG_LEVEL / LOG_FORMAT
//   - Request ID propagation into log fields
//   - HTTP access logging for the chi router
package observability
