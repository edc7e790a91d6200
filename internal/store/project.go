package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/models"
)

func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := first[models.Project](s.conn(ctx).Where("project_id = ?", id), "project", id)
	if err != nil {
		return nil, err
	}
	if s.pending == nil {
		s.projects.Set(id, *p)
	}
	return p, nil
}

func (s *Store) CachedProject(ctx context.Context, id string) (*models.Project, error) {
	if p, ok := s.projects.Get(id); ok {
		return &p, nil
	}
	return s.GetProject(ctx, id)
}

func (s *Store) ListProjects(ctx context.Context, workspaceID string) ([]models.Project, error) {
	var out []models.Project
	err := s.conn(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("timestamp_created ASC").
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "list projects")
	}
	return out, validateAll("project", out)
}

func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	if err := checkValid("project", p); err != nil {
		return err
	}
	return errors.Wrap(s.conn(ctx).Create(p).Error, "create project")
}

func (s *Store) UpdateProject(ctx context.Context, id string, updates map[string]any) error {
	defer s.invalidateProject(id)
	res := s.conn(ctx).Model(&models.Project{}).Where("project_id = ?", id).Updates(updates)
	return checkWrite(res, "project", id)
}

// DeleteProject removes the project row only; see DeleteProjectContents.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	defer s.invalidateProject(id)
	res := s.conn(ctx).Where("project_id = ?", id).Delete(&models.Project{})
	return checkWrite(res, "project", id)
}

// DeleteProjectContents removes every file, job and data blob of a
// project.
func (s *Store) DeleteProjectContents(ctx context.Context, projectID string) error {
	q := s.conn(ctx)
	for _, doc := range []any{&models.File{}, &models.Job{}, &models.DataBlob{}} {
		if err := q.Where("project_id = ?", projectID).Delete(doc).Error; err != nil {
			return errors.Wrapf(err, "delete contents of project %s", projectID)
		}
	}
	return nil
}
