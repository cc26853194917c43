package store

import (
	"context"
	"errors"
	"time"

	"github.com/opsdeck/opsdeck/internal/panel/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. Sub-repositories keep concerns tidy and testable.
//
// Uniqueness (users.email, invites.token_hash) is enforced by the driver's
// schema, not by callers: pre-checks in services are advisory and the driver
// translates constraint violations into ErrAlreadyExists so concurrent
// check-then-act races collapse into the same conflict error.
type Store interface {
	Users() Users
	Invites() Invites
	Projects() Projects

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing on nil and rolling
	// back on error. This is the recommended way to handle transactions.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login and invite pre-checks.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists on a duplicate email.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateUserRole sets the role and stamps updated_at with the caller's
	// clock.
	UpdateUserRole(ctx context.Context, userID string, role domain.Role, updatedAt time.Time) error

	// UpdateUserStatus sets the status and stamps updated_at with the
	// caller's clock.
	UpdateUserStatus(ctx context.Context, userID string, status domain.Status, updatedAt time.Time) error

	// ListUsers returns a page of users ordered by creation date (newest first).
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)

	// CountUsers returns the total number of users.
	CountUsers(ctx context.Context) (int64, error)

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type Invites interface {
	// CreateInvite writes a new invite (token_hash is the sha256 fingerprint
	// of the opaque invite token). Returns ErrAlreadyExists on a duplicate
	// token hash.
	CreateInvite(ctx context.Context, inv domain.Invite) error

	// GetInviteByTokenHash returns an invite by fingerprint regardless of
	// state, so callers can report accepted and expired distinctly.
	GetInviteByTokenHash(ctx context.Context, hash string) (domain.Invite, error)

	// FindLiveInviteByEmail returns an unaccepted, unexpired invite for the
	// email, checked against the provided time.
	FindLiveInviteByEmail(ctx context.Context, email string, now time.Time) (domain.Invite, error)

	// MarkInviteAccepted sets accepted_at only if it is still unset; a
	// second caller gets ErrNotFound. This is what serializes single use.
	MarkInviteAccepted(ctx context.Context, inviteID string, acceptedAt time.Time) error

	// DeleteExpiredInvitesBefore removes invites whose expiry is before the
	// cutoff (housekeeping). Recent expired invites stay queryable.
	DeleteExpiredInvitesBefore(ctx context.Context, cutoff time.Time) error
}

type Projects interface {
	// CreateProject inserts a new project (id is ULID).
	CreateProject(ctx context.Context, p domain.Project) error

	// GetProjectByID returns a project with its creator summary, including
	// soft-deleted ones; callers decide how to surface those.
	GetProjectByID(ctx context.Context, id string) (domain.Project, error)

	// ListProjects returns projects newest first, excluding soft-deleted
	// ones unless includeDeleted is set.
	ListProjects(ctx context.Context, includeDeleted bool) ([]domain.Project, error)

	// UpdateProject sets name/description/status and stamps updated_at with
	// the caller's clock.
	UpdateProject(ctx context.Context, id, name, description string, status domain.ProjectStatus, updatedAt time.Time) error

	// SoftDeleteProject flags the project deleted and moves it to DELETED.
	SoftDeleteProject(ctx context.Context, id string, deletedAt time.Time) error
}
