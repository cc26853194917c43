package sqlite

import (
	"context"
	"time"

	"github.com/opsdeck/opsdeck/internal/panel/domain"
)

type projectsRepo struct {
	db dbtx
}

const projectColumns = `p.id, p.name, p.description, p.status, p.is_deleted, p.created_by,
	u.id, u.name, u.email, p.created_at, p.updated_at`

func scanProject(row interface{ Scan(dest ...any) error }) (domain.Project, error) {
	var (
		p      domain.Project
		status string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &status, &p.IsDeleted, &p.CreatedBy,
		&p.Creator.ID, &p.Creator.Name, &p.Creator.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Project{}, err
	}
	p.Status = domain.ProjectStatus(status)
	return p, nil
}

func (r *projectsRepo) CreateProject(ctx context.Context, p domain.Project) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, status, is_deleted, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, string(p.Status), p.IsDeleted, p.CreatedBy,
		p.CreatedAt, p.UpdatedAt)
	return mapConstraint(err)
}

func (r *projectsRepo) GetProjectByID(ctx context.Context, id string) (domain.Project, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+`
		 FROM projects p JOIN users u ON u.id = p.created_by
		 WHERE p.id = ?`, id)
	p, err := scanProject(row)
	if err != nil {
		return domain.Project{}, mapNotFound(err)
	}
	return p, nil
}

func (r *projectsRepo) ListProjects(ctx context.Context, includeDeleted bool) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + `
		 FROM projects p JOIN users u ON u.id = p.created_by`
	if !includeDeleted {
		query += ` WHERE p.is_deleted = 0`
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *projectsRepo) UpdateProject(ctx context.Context, id, name, description string, status domain.ProjectStatus, updatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, status = ?, updated_at = ? WHERE id = ?`,
		name, description, string(status), updatedAt, id)
	return mapRowsAffected(res, err)
}

func (r *projectsRepo) SoftDeleteProject(ctx context.Context, id string, deletedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET is_deleted = 1, status = 'DELETED', updated_at = ? WHERE id = ?`,
		deletedAt, id)
	return mapRowsAffected(res, err)
}
