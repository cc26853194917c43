package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/opsdeck/opsdeck/internal/panel/domain"
	"github.com/opsdeck/opsdeck/internal/panel/store/drivers/sqlite"
	"github.com/opsdeck/opsdeck/pkg/cryptox"
	"github.com/opsdeck/opsdeck/pkg/idx"
	"github.com/opsdeck/opsdeck/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "panel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func newTestIssuer(t *testing.T) *jwtx.Issuer {
	t.Helper()

	issuer, err := jwtx.NewIssuer("test-secret-key", "panel-test", time.Hour)
	require.NoError(t, err)
	return issuer
}

func seedUser(t *testing.T, s *sqlite.Store, email, password string, role domain.Role, status domain.Status) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		Role:         role,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func TestAuthServiceLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials mint a session token", func(t *testing.T) {
		s := newTestStore(t)
		issuer := newTestIssuer(t)
		svc := &AuthService{Store: s, Issuer: issuer}
		seedUser(t, s, "admin@example.com", "correct horse", domain.RoleAdmin, domain.StatusActive)

		token, user, err := svc.Login(ctx, "admin@example.com", "correct horse")
		require.NoError(t, err)
		require.NotEmpty(t, token)
		require.Equal(t, "admin@example.com", user.Email)

		claims, err := issuer.Verify(token)
		require.NoError(t, err)
		require.Equal(t, user.ID, claims.Subject)
		require.Equal(t, "admin@example.com", claims.Email)
		require.Equal(t, "ADMIN", claims.Role)
	})

	t.Run("unknown email and wrong password return the same error", func(t *testing.T) {
		s := newTestStore(t)
		svc := &AuthService{Store: s, Issuer: newTestIssuer(t)}
		seedUser(t, s, "user@example.com", "right-password", domain.RoleStaff, domain.StatusActive)

		_, _, errUnknown := svc.Login(ctx, "ghost@example.com", "whatever")
		_, _, errWrong := svc.Login(ctx, "user@example.com", "wrong-password")

		require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		require.ErrorIs(t, errWrong, ErrInvalidCredentials)
	})

	t.Run("deactivated account is rejected before password check", func(t *testing.T) {
		s := newTestStore(t)
		svc := &AuthService{Store: s, Issuer: newTestIssuer(t)}
		seedUser(t, s, "gone@example.com", "secret", domain.RoleStaff, domain.StatusInactive)

		_, _, err := svc.Login(ctx, "gone@example.com", "secret")
		require.ErrorIs(t, err, ErrAccountDeactivated)
	})

	t.Run("empty input is invalid credentials", func(t *testing.T) {
		svc := &AuthService{Store: newTestStore(t), Issuer: newTestIssuer(t)}

		_, _, err := svc.Login(ctx, "", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("corrupt stored hash surfaces as invalid credentials", func(t *testing.T) {
		s := newTestStore(t)
		svc := &AuthService{Store: s, Issuer: newTestIssuer(t)}

		now := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, s.Users().CreateUser(ctx, domain.User{
			ID:           idx.New().String(),
			Email:        "broken@example.com",
			Name:         "Broken Row",
			PasswordHash: "not-a-phc-digest",
			Role:         domain.RoleStaff,
			Status:       domain.StatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}))

		_, _, err := svc.Login(ctx, "broken@example.com", "whatever")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthServiceAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token resolves the live identity", func(t *testing.T) {
		s := newTestStore(t)
		issuer := newTestIssuer(t)
		svc := &AuthService{Store: s, Issuer: issuer}
		user := seedUser(t, s, "admin@example.com", "pw", domain.RoleAdmin, domain.StatusActive)

		token, _, err := svc.Login(ctx, "admin@example.com", "pw")
		require.NoError(t, err)

		identity, err := svc.Authenticate(ctx, token)
		require.NoError(t, err)
		require.Equal(t, user.ID, identity.UserID)
		require.Equal(t, domain.RoleAdmin, identity.Role)
	})

	t.Run("role changes take effect on the next request", func(t *testing.T) {
		s := newTestStore(t)
		svc := &AuthService{Store: s, Issuer: newTestIssuer(t)}
		user := seedUser(t, s, "mgr@example.com", "pw", domain.RoleManager, domain.StatusActive)

		token, _, err := svc.Login(ctx, "mgr@example.com", "pw")
		require.NoError(t, err)

		// Demote while the session token still claims MANAGER.
		require.NoError(t, s.Users().UpdateUserRole(ctx, user.ID, domain.RoleStaff, time.Now().UTC()))

		identity, err := svc.Authenticate(ctx, token)
		require.NoError(t, err)
		require.Equal(t, domain.RoleStaff, identity.Role)
	})

	t.Run("deactivation kills existing sessions", func(t *testing.T) {
		s := newTestStore(t)
		svc := &AuthService{Store: s, Issuer: newTestIssuer(t)}
		user := seedUser(t, s, "victim@example.com", "pw", domain.RoleStaff, domain.StatusActive)

		token, _, err := svc.Login(ctx, "victim@example.com", "pw")
		require.NoError(t, err)

		require.NoError(t, s.Users().UpdateUserStatus(ctx, user.ID, domain.StatusInactive, time.Now().UTC()))

		_, err = svc.Authenticate(ctx, token)
		require.ErrorIs(t, err, ErrAccountDeactivated)
	})

	t.Run("garbage and empty tokens are unauthenticated", func(t *testing.T) {
		svc := &AuthService{Store: newTestStore(t), Issuer: newTestIssuer(t)}

		_, err := svc.Authenticate(ctx, "")
		require.ErrorIs(t, err, ErrUnauthenticated)

		_, err = svc.Authenticate(ctx, "not.a.jwt")
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("expired token is unauthenticated", func(t *testing.T) {
		s := newTestStore(t)
		issuer := newTestIssuer(t)
		svc := &AuthService{Store: s, Issuer: issuer}
		seedUser(t, s, "late@example.com", "pw", domain.RoleStaff, domain.StatusActive)

		token, _, err := svc.Login(ctx, "late@example.com", "pw")
		require.NoError(t, err)

		// Shift the verifier's clock past the TTL.
		issuer.Now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

		_, err = svc.Authenticate(ctx, token)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestAuthServiceAuthorize(t *testing.T) {
	svc := &AuthService{}

	t.Run("allows listed roles", func(t *testing.T) {
		admin := domain.Identity{Role: domain.RoleAdmin}
		require.NoError(t, svc.Authorize(admin, domain.RoleAdmin))
		require.NoError(t, svc.Authorize(admin, domain.RoleAdmin, domain.RoleManager))
	})

	t.Run("rejects everyone else", func(t *testing.T) {
		staff := domain.Identity{Role: domain.RoleStaff}
		require.ErrorIs(t, svc.Authorize(staff, domain.RoleAdmin), ErrForbidden)
		require.ErrorIs(t, svc.Authorize(staff, domain.RoleAdmin, domain.RoleManager), ErrForbidden)
	})
}
