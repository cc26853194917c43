package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opsdeck/opsdeck/internal/panel/domain"
	"github.com/opsdeck/opsdeck/internal/panel/store"
	"github.com/opsdeck/opsdeck/pkg/cryptox"
	"github.com/opsdeck/opsdeck/pkg/jwtx"
	"github.com/opsdeck/opsdeck/pkg/slogx"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// login never reveals which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
)

type AuthService struct {
	Store  store.Store
	Issuer *jwtx.Issuer

	// Now is an optional clock override for tests.
	Now func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Login verifies the email/password pair and mints a session token.
// The password hash is always checked against a real hash shape so unknown
// emails and wrong passwords are indistinguishable to the caller, in timing
// as well as in the returned error.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	log := slogx.FromContext(ctx)

	if email == "" || password == "" {
		return "", domain.User{}, ErrInvalidCredentials
	}

	// 1. Look up the user. An unknown email still burns a hash verification
	// below so the response time does not leak account existence.
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			cryptox.VerifyDummyPassword(password)
			log.Warn("login attempt for unknown email")
			return "", domain.User{}, ErrInvalidCredentials
		}
		log.Error("failed to fetch user for login", slog.Any("error", err))
		return "", domain.User{}, err
	}

	// 2. Deactivated accounts are rejected before the password check; the
	// error is deliberately distinct from bad credentials.
	if user.Status == domain.StatusInactive {
		log.Warn("login attempt on deactivated account", slog.String("user_id", user.ID))
		return "", domain.User{}, ErrAccountDeactivated
	}

	// 3. Verify the password. A corrupt stored hash also surfaces as bad
	// credentials rather than leaking internals, but it is logged loudly so
	// corrupt rows are not mistaken for bad logins.
	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			log.Warn("login attempt with wrong password", slog.String("user_id", user.ID))
		} else {
			log.Error("stored password hash is unreadable",
				slog.String("user_id", user.ID),
				slog.Any("error", err),
			)
		}
		return "", domain.User{}, ErrInvalidCredentials
	}

	// 4. Mint the session token.
	token, err := s.Issuer.Issue(user.ID, user.Email, user.Role.String())
	if err != nil {
		log.Error("failed to issue session token", slog.Any("error", err))
		return "", domain.User{}, err
	}

	log.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role.String()),
	)
	return token, user, nil
}

// Authenticate verifies a session token and resolves the live identity.
// Claims are never trusted for role or status: the user row is re-fetched on
// every call so role changes and deactivation take effect immediately.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	log := slogx.FromContext(ctx)

	if token == "" {
		return domain.Identity{}, ErrUnauthenticated
	}

	// 1. Verify the token signature and validity window.
	claims, err := s.Issuer.Verify(token)
	if err != nil {
		log.Warn("session token rejected", slog.Any("error", err))
		return domain.Identity{}, ErrUnauthenticated
	}

	// 2. Re-fetch the user. A deleted user means a dead session.
	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("session token for missing user", slog.String("user_id", claims.Subject))
			return domain.Identity{}, ErrUnauthenticated
		}
		log.Error("failed to fetch user for session", slog.Any("error", err))
		return domain.Identity{}, err
	}

	// 3. Deactivation kills existing sessions too.
	if user.Status == domain.StatusInactive {
		log.Warn("session token for deactivated user", slog.String("user_id", user.ID))
		return domain.Identity{}, ErrAccountDeactivated
	}

	return domain.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Status: user.Status,
	}, nil
}

// Authorize checks the identity's live role against the allowed set.
func (s *AuthService) Authorize(identity domain.Identity, allowed ...domain.Role) error {
	for _, role := range allowed {
		if identity.Role == role {
			return nil
		}
	}
	return ErrForbidden
}
