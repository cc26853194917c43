package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opsdeck/opsdeck/internal/panel/domain"
	"github.com/opsdeck/opsdeck/internal/panel/store"
	"github.com/opsdeck/opsdeck/pkg/idx"
	"github.com/opsdeck/opsdeck/pkg/slogx"
)

var (
	ErrProjectNotFound       = errors.New("project not found")
	ErrProjectDeleted        = errors.New("project has been deleted")
	ErrInvalidProjectRequest = errors.New("invalid project request")
)

type ProjectService struct {
	Store store.Store

	// Now is an optional clock override for tests.
	Now func() time.Time
}

func (s *ProjectService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// CreateProject records a new project owned by the creating user.
func (s *ProjectService) CreateProject(ctx context.Context, createdBy, name, description string) (domain.Project, error) {
	log := slogx.FromContext(ctx)

	if name == "" {
		return domain.Project{}, ErrInvalidProjectRequest
	}

	now := s.now()
	project := domain.Project{
		ID:          idx.New().String(),
		Name:        name,
		Description: description,
		Status:      domain.ProjectActive,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.Store.Projects().CreateProject(ctx, project); err != nil {
		log.Error("failed to create project", slog.Any("error", err))
		return domain.Project{}, err
	}

	log.Info("project created",
		slog.String("project_id", project.ID),
		slog.String("created_by", createdBy),
	)
	return s.GetProject(ctx, project.ID)
}

// ListProjects returns all non-deleted projects, newest first.
func (s *ProjectService) ListProjects(ctx context.Context) ([]domain.Project, error) {
	projects, err := s.Store.Projects().ListProjects(ctx, false)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list projects", slog.Any("error", err))
		return nil, err
	}
	return projects, nil
}

// GetProject returns a project by id. Soft-deleted projects are reported as
// not found so they vanish from the API without losing their history.
func (s *ProjectService) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	project, err := s.Store.Projects().GetProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Project{}, ErrProjectNotFound
		}
		return domain.Project{}, err
	}
	if project.IsDeleted {
		return domain.Project{}, ErrProjectNotFound
	}
	return project, nil
}

// UpdateProject changes name, description, and status of a live project.
func (s *ProjectService) UpdateProject(
	ctx context.Context,
	projectID, name, description string,
	status domain.ProjectStatus,
) (domain.Project, error) {
	log := slogx.FromContext(ctx)

	if name == "" {
		return domain.Project{}, ErrInvalidProjectRequest
	}
	if _, err := domain.ParseProjectStatus(string(status)); err != nil || status == domain.ProjectDeleted {
		return domain.Project{}, ErrInvalidProjectRequest
	}

	// Deleted projects cannot be edited back to life.
	existing, err := s.Store.Projects().GetProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Project{}, ErrProjectNotFound
		}
		return domain.Project{}, err
	}
	if existing.IsDeleted {
		return domain.Project{}, ErrProjectDeleted
	}

	if err := s.Store.Projects().UpdateProject(ctx, projectID, name, description, status, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Project{}, ErrProjectNotFound
		}
		log.Error("failed to update project", slog.Any("error", err))
		return domain.Project{}, err
	}

	log.Info("project updated", slog.String("project_id", projectID))
	return s.GetProject(ctx, projectID)
}

// DeleteProject soft-deletes a project. The row stays in the store but the
// project disappears from reads.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID string) error {
	log := slogx.FromContext(ctx)

	existing, err := s.Store.Projects().GetProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrProjectNotFound
		}
		return err
	}
	if existing.IsDeleted {
		return ErrProjectDeleted
	}

	if err := s.Store.Projects().SoftDeleteProject(ctx, projectID, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrProjectNotFound
		}
		log.Error("failed to delete project", slog.Any("error", err))
		return err
	}

	log.Info("project deleted", slog.String("project_id", projectID))
	return nil
}
