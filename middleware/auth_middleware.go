package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rkbansal/postify/services"
	"github.com/rkbansal/postify/utils"
	"go.uber.org/zap"
)

// ErrAuthDisabled is returned by the validator used when OAuth is not configured
var ErrAuthDisabled = errors.New("authentication not configured")

// TokenValidator defines the interface for validating session tokens
type TokenValidator interface {
	// ValidateToken validates a token and returns its claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// DisabledValidator rejects every token
type DisabledValidator struct{}

// ValidateToken always fails with ErrAuthDisabled
func (DisabledValidator) ValidateToken(context.Context, string) (*Claims, error) {
	return nil, ErrAuthDisabled
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. A nil validator rejects all requests.
func NewAuthMiddleware(validator TokenValidator, logger *zap.Logger) *AuthMiddleware {
	if validator == nil {
		validator = DisabledValidator{}
	}
	return &AuthMiddleware{
		validator: validator,
		logger:    logger,
	}
}

// authTokenCookieName is accepted for API clients; the session cookie is set by the OAuth callback
const (
	authTokenCookieName = "auth_token"
	sessionCookieName   = "session"
)

const invalidSessionMessage = "Invalid or expired session"

// RequireAuth is a middleware that requires a valid session token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := chimw.GetReqID(ctx)

		token := extractToken(r)
		if token == "" {
			m.logger.Debug("missing token", zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.rejectSession(w, "token validation failed", requestID, err)
			return
		}

		userID, err := uuid.Parse(claims.Sub)
		if err != nil {
			m.rejectSession(w, "invalid subject in session", requestID,
				fmt.Errorf("subject %q: %w", claims.Sub, err))
			return
		}

		ctx = WithClaims(ctx, claims)
		ctx = WithUserID(ctx, userID)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("user_id", userID.String()))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rejectSession answers 401 for a token that was presented but not accepted
func (m *AuthMiddleware) rejectSession(w http.ResponseWriter, msg, requestID string, cause error) {
	err := services.NewDomainError(services.ErrInvalidToken.Type, services.ErrInvalidToken.Message, cause)
	m.logger.Warn(msg,
		zap.String("request_id", requestID),
		zap.Error(err))
	_ = utils.WriteUnauthorized(w, invalidSessionMessage)
}

// extractToken reads the Authorization header first, then the auth_token and session cookies
func extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	for _, name := range []string{authTokenCookieName, sessionCookieName} {
		if cookie, err := r.Cookie(name); err == nil && cookie.Value != "" {
			return cookie.Value
		}
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
