package domain

import (
	"errors"
	"time"
)

// ProjectStatus is the closed set of project states.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "ACTIVE"
	ProjectArchived ProjectStatus = "ARCHIVED"
	ProjectDeleted  ProjectStatus = "DELETED"
)

var ErrInvalidProjectStatus = errors.New("domain: invalid project status")

// ParseProjectStatus validates a raw project status string.
func ParseProjectStatus(s string) (ProjectStatus, error) {
	switch ProjectStatus(s) {
	case ProjectActive, ProjectArchived, ProjectDeleted:
		return ProjectStatus(s), nil
	}
	return "", ErrInvalidProjectStatus
}

// UserRef is the public summary of a user embedded in other entities.
type UserRef struct {
	ID    string
	Name  string
	Email string
}

type Project struct {
	ID          string
	Name        string
	Description string
	Status      ProjectStatus
	IsDeleted   bool // soft delete; deleted projects stay in the store
	CreatedBy   string
	Creator     UserRef
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
