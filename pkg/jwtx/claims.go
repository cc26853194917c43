package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the default lifetime for session tokens.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Claims are the session-token claims. The subject is the user id; email and
// role are carried so handlers can render identity without a lookup, but
// authorisation decisions always go through a live user re-fetch because
// tokens are stateless and cannot be revoked individually.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated user
	Email string `json:"email,omitempty"`

	// Role name at issue time ("ADMIN", "MANAGER", "STAFF")
	Role string `json:"role,omitempty"`
}

// NewSessionClaims builds minimally-correct claims for a user session.
func NewSessionClaims(
	subject, email, role string,
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
		},
		Email: email,
		Role:  role,
	}
}
