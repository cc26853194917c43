package domain

import (
	"errors"
	"time"
)

// Role is the closed set of panel roles. Values are stored as-is, so parsing
// at the boundary is what keeps unknown roles out of the data model.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleStaff   Role = "STAFF"
)

var ErrInvalidRole = errors.New("domain: invalid role")

// ParseRole validates a raw role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleStaff:
		return Role(s), nil
	}
	return "", ErrInvalidRole
}

func (r Role) String() string { return string(r) }

// Status is the closed set of account statuses. INACTIVE blocks
// authentication entirely.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

var ErrInvalidStatus = errors.New("domain: invalid status")

// ParseStatus validates a raw status string against the closed set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusInactive:
		return Status(s), nil
	}
	return "", ErrInvalidStatus
}

func (s Status) String() string { return string(s) }

type User struct {
	ID           string
	Email        string // unique
	Name         string
	PasswordHash string     // argon2 encoded
	Role         Role
	Status       Status
	InvitedAt    *time.Time // set when the account came from an invite
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
