package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. Short-lived access tokens bound the damage of
// a leaked bearer string; the long refresh TTL matches mobile client
// expectations. Both can be overridden per-service via configuration.
const (
	DefaultAccessTokenTTL  = 2 * time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// TypeRefresh marks refresh tokens via the "type" claim so that a refresh
// token presented where an access token is expected can be rejected by the
// caller. The signature scheme is identical for both token kinds.
const TypeRefresh = "refresh"

// Claims are the session-token claims shared across the service.
type Claims struct {
	jwt.RegisteredClaims

	// TokenType discriminates refresh tokens ("refresh") from access
	// tokens (empty).
	TokenType string `json:"type,omitempty"`

	// Name is the display name for the user.
	Name string `json:"name,omitempty"`

	// Email of the authenticated user, when known.
	Email string `json:"email,omitempty"`
}

// UserID returns the subject claim, which carries the user's ULID.
func (c *Claims) UserID() string { return c.Subject }

// IsRefresh reports whether the claims belong to a refresh token.
func (c *Claims) IsRefresh() bool { return c.TokenType == TypeRefresh }

// RemainingTTL returns the time until expiry, clamped at zero. It is used to
// bound blacklist entries so they self-expire exactly when the token would
// have expired anyway.
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := c.ExpiresAt.Time.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NewClaims builds minimally-correct claims for a session token.
func NewClaims(
	subject, name, email string,
	tokenType string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		TokenType: tokenType,
		Name:      name,
		Email:     email,
	}
}
