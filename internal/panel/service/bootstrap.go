package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opsdeck/opsdeck/internal/panel/domain"
	"github.com/opsdeck/opsdeck/internal/panel/store"
	"github.com/opsdeck/opsdeck/pkg/cryptox"
	"github.com/opsdeck/opsdeck/pkg/idx"
)

// BootstrapService seeds the first admin account on an empty database. The
// panel is invite-only, so without this there would be no way in at all.
type BootstrapService struct {
	Store  store.Store
	Logger *slog.Logger

	AdminEmail    string
	AdminName     string
	AdminPassword string // empty means generate one and log it

	// Now is an optional clock override for tests.
	Now func() time.Time
}

func (s *BootstrapService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// EnsureAdmin creates the initial admin if and only if no users exist yet.
// It returns the created user, or a zero user when the store is already
// populated. When no admin password is configured, a random one is generated
// and written to the log exactly once.
func (s *BootstrapService) EnsureAdmin(ctx context.Context) (domain.User, bool, error) {
	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return domain.User{}, false, err
	}
	if !empty {
		return domain.User{}, false, nil
	}

	password := s.AdminPassword
	generated := false
	if password == "" {
		password, err = cryptox.GeneratePassword()
		if err != nil {
			return domain.User{}, false, err
		}
		generated = true
	}

	passwordHash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, false, err
	}

	now := s.now()
	admin := domain.User{
		ID:           idx.New().String(),
		Email:        s.AdminEmail,
		Name:         s.AdminName,
		PasswordHash: passwordHash,
		Role:         domain.RoleAdmin,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, admin); err != nil {
		// A concurrent instance may have seeded first; that is fine.
		if errors.Is(err, store.ErrAlreadyExists) {
			s.Logger.Info("admin already seeded by another instance")
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}

	if generated {
		s.Logger.Warn("seeded initial admin with generated password",
			slog.String("email", admin.Email),
			slog.String("password", password),
		)
	} else {
		s.Logger.Info("seeded initial admin", slog.String("email", admin.Email))
	}
	return admin, true, nil
}
