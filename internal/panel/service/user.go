package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opsdeck/opsdeck/internal/panel/domain"
	"github.com/opsdeck/opsdeck/internal/panel/store"
	"github.com/opsdeck/opsdeck/pkg/slogx"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrCannotModifySelf = errors.New("cannot change your own role or status")
)

type UserService struct {
	Store store.Store

	// Now is an optional clock override for tests.
	Now func() time.Time
}

func (s *UserService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// ListUsers returns one page of users plus the total count. Pages are
// 1-based; out-of-range sizes are clamped rather than rejected.
func (s *UserService) ListUsers(ctx context.Context, page, pageSize int) ([]domain.User, int64, error) {
	log := slogx.FromContext(ctx)

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	total, err := s.Store.Users().CountUsers(ctx)
	if err != nil {
		log.Error("failed to count users", slog.Any("error", err))
		return nil, 0, err
	}

	users, err := s.Store.Users().ListUsers(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		log.Error("failed to list users", slog.Any("error", err))
		return nil, 0, err
	}
	return users, total, nil
}

// GetUser returns a single user by id.
func (s *UserService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// UpdateRole changes a user's role. Admins cannot change their own role,
// which keeps at least the acting admin in place.
func (s *UserService) UpdateRole(ctx context.Context, actorID, userID string, role domain.Role) (domain.User, error) {
	log := slogx.FromContext(ctx)

	if actorID == userID {
		log.Warn("admin attempted to change own role", slog.String("user_id", actorID))
		return domain.User{}, ErrCannotModifySelf
	}
	if _, err := domain.ParseRole(role.String()); err != nil {
		return domain.User{}, ErrInvalidRole
	}

	if err := s.Store.Users().UpdateUserRole(ctx, userID, role, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		log.Error("failed to update role", slog.Any("error", err))
		return domain.User{}, err
	}

	log.Info("user role updated",
		slog.String("user_id", userID),
		slog.String("role", role.String()),
		slog.String("actor_id", actorID),
	)
	return s.GetUser(ctx, userID)
}

// UpdateStatus activates or deactivates a user. Deactivation takes effect on
// the user's next request because authentication re-checks the live row.
// Admins cannot deactivate themselves.
func (s *UserService) UpdateStatus(ctx context.Context, actorID, userID string, status domain.Status) (domain.User, error) {
	log := slogx.FromContext(ctx)

	if actorID == userID {
		log.Warn("admin attempted to change own status", slog.String("user_id", actorID))
		return domain.User{}, ErrCannotModifySelf
	}
	if _, err := domain.ParseStatus(status.String()); err != nil {
		return domain.User{}, domain.ErrInvalidStatus
	}

	if err := s.Store.Users().UpdateUserStatus(ctx, userID, status, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		log.Error("failed to update status", slog.Any("error", err))
		return domain.User{}, err
	}

	log.Info("user status updated",
		slog.String("user_id", userID),
		slog.String("status", status.String()),
		slog.String("actor_id", actorID),
	)
	return s.GetUser(ctx, userID)
}
