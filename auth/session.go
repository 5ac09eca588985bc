package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rkbansal/postify/middleware"
	"github.com/rkbansal/postify/models"
)

const (
	sessionIssuer     = "postify"
	DefaultSessionTTL = 7 * 24 * time.Hour
)

// sessionClaims is the JWT payload of a session cookie
type sessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// SessionManager issues and validates HS256 session tokens
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager creates a session manager signing with secret
func NewSessionManager(secret string, ttl time.Duration) (*SessionManager, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns how long issued sessions stay valid
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a session token for user
func (m *SessionManager) Issue(user *models.User) (string, error) {
	now := m.now()
	claims := sessionClaims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return token, nil
}

// ValidateToken verifies the signature, issuer and expiry of a session token
func (m *SessionManager) ValidateToken(_ context.Context, tokenString string) (*middleware.Claims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("invalid session: missing subject")
	}

	out := &middleware.Claims{
		Sub:   claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
	}
	if claims.ExpiresAt != nil {
		out.Exp = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		out.Iat = claims.IssuedAt.Unix()
	}
	return out, nil
}
