package middleware

import (
	"context"

	"github.com/google/uuid"
)

// Context key type to avoid collisions
type contextKey string

const (
	// ClaimsKey is the context key for session claims
	ClaimsKey contextKey = "claims"

	// UserIDKey is the context key for the authenticated user ID
	UserIDKey contextKey = "user_id"
)

// Claims represents the session token claims
type Claims struct {
	Sub   string `json:"sub"` // Postify user ID
	Email string `json:"email"`
	Name  string `json:"name"`
	Exp   int64  `json:"exp"`
	Iat   int64  `json:"iat"`
}

// GetClaimsFromContext retrieves session claims from context
func GetClaimsFromContext(ctx context.Context) *Claims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*Claims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds session claims to the context
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetUserIDFromContext retrieves the authenticated user ID from context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if val := ctx.Value(UserIDKey); val != nil {
		if userID, ok := val.(uuid.UUID); ok {
			return userID, true
		}
	}
	return uuid.Nil, false
}

// WithUserID adds the authenticated user ID to the context
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
