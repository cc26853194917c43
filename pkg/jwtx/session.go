package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingSecret means the process was started without a signing
	// secret. This is a configuration failure, not a request failure.
	ErrMissingSecret = errors.New("jwtx: signing secret is required")

	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
)

// Issuer mints and verifies HS256 session tokens with a single process-wide
// secret. Tokens are self-contained; verification needs no I/O.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration

	// Now is the clock used for issuing and verifying. Overridable in tests;
	// defaults to time.Now.
	Now func() time.Time
}

// NewIssuer builds an Issuer. An empty secret returns ErrMissingSecret so the
// caller can fail startup rather than mint unsigned-equivalent tokens.
func NewIssuer(secret, issuer string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return &Issuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}, nil
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// Issue signs a session token for the given user identity.
func (i *Issuer) Issue(userID, email, role string) (string, error) {
	claims := NewSessionClaims(userID, email, role, i.ttl, i.issuer, i.now().UTC())

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify checks signature integrity and expiry and returns the embedded
// claims. Forged/malformed tokens and expired ones come back as distinct
// sentinel errors so logs and tests can tell them apart; callers present
// both to clients as the same invalid-token failure.
func (i *Issuer) Verify(tokenString string) (Claims, error) {
	var claims Claims

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return Claims{}, mapVerifyError(err)
	}

	return claims, nil
}

func mapVerifyError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuer
	default:
		return ErrMalformed
	}
}
