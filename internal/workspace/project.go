package workspace

import (
	"context"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/identity"
	"github.com/protocaas/protocaas/internal/models"
	"github.com/protocaas/protocaas/internal/permission"
	"github.com/protocaas/protocaas/internal/store"
	"github.com/protocaas/protocaas/pkg/log"
	"github.com/protocaas/protocaas/pkg/randomid"
)

func (s *Service) ListProjects(ctx context.Context, p identity.Principal, workspaceID string) ([]models.Project, error) {
	if _, err := s.Get(ctx, p, workspaceID); err != nil {
		return nil, err
	}
	return s.store.ListProjects(ctx, workspaceID)
}

func (s *Service) GetProject(ctx context.Context, p identity.Principal, projectID string) (*models.Project, error) {
	project, err := s.store.CachedProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, p, project.WorkspaceID); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *Service) CreateProject(ctx context.Context, p identity.Principal, workspaceID, name string) (string, error) {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	if !permission.CanCreateProject(ws, p) {
		return "", permission.Deny("create projects in this workspace")
	}
	now := models.Now()
	project := &models.Project{
		ProjectID:         randomid.New(idLength),
		WorkspaceID:       workspaceID,
		Name:              name,
		TimestampCreated:  now,
		TimestampModified: now,
	}
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.CreateProject(ctx, project); err != nil {
			return err
		}
		return tx.TouchWorkspace(ctx, workspaceID)
	})
	if err != nil {
		return "", err
	}
	log.Info("project created", "project_id", project.ProjectID, "workspace_id", workspaceID)
	return project.ProjectID, nil
}

// DeleteProject removes the project with its files, jobs and data
// blobs, then touches the workspace.
func (s *Service) DeleteProject(ctx context.Context, p identity.Principal, workspaceID, projectID string) error {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !permission.CanDeleteProject(ws, p) {
		return permission.Deny("delete projects in this workspace")
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project.WorkspaceID != workspaceID {
		return ErrIncorrectWorkspace
	}
	var jobIDs []string
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		ids, err := deleteProject(ctx, tx, projectID)
		if err != nil {
			return err
		}
		jobIDs = ids
		return tx.TouchWorkspace(ctx, workspaceID)
	})
	if err != nil {
		return err
	}
	s.removeOutputs(ctx, jobIDs)
	return nil
}

// deleteProject removes the project and its contents, returning the ids
// of the jobs it held.
func deleteProject(ctx context.Context, tx *store.Store, projectID string) ([]string, error) {
	jobs, err := tx.ListJobs(ctx, store.JobFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	if err := tx.DeleteProjectContents(ctx, projectID); err != nil {
		return nil, err
	}
	if err := tx.DeleteProject(ctx, projectID); err != nil {
		return nil, err
	}
	ids := make([]string, len(jobs))
	for i := range jobs {
		ids[i] = jobs[i].JobID
	}
	return ids, nil
}

// SetProjectProperty sets the project's name or description.
func (s *Service) SetProjectProperty(ctx context.Context, p identity.Principal, projectID, property string, value any) error {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	ws, err := s.store.GetWorkspace(ctx, project.WorkspaceID)
	if err != nil {
		return err
	}
	if !permission.CanSetProjectProperty(ws, p) {
		return permission.Deny("set properties of this project")
	}
	if property != "name" && property != "description" {
		return errors.Wrap(ErrUnsupportedProperty, property)
	}
	v, err := asString(property, value)
	if err != nil {
		return err
	}
	return s.store.UpdateProject(ctx, projectID, map[string]any{
		property:             v,
		"timestamp_modified": models.Now(),
	})
}

// ProjectContents is a project with everything a client renders.
type ProjectContents struct {
	Project *models.Project `json:"project"`
	Files   []models.File   `json:"files"`
	Jobs    []models.Job    `json:"jobs"`
}

// LoadProject returns the project, its files and its jobs with private
// keys blanked. Anonymous callers succeed on readable workspaces.
func (s *Service) LoadProject(ctx context.Context, p identity.Principal, projectID string) (*ProjectContents, error) {
	project, err := s.GetProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	files, err := s.store.ListFiles(ctx, projectID)
	if err != nil {
		return nil, err
	}
	jobs, err := s.store.ListJobs(ctx, store.JobFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		jobs[i] = jobs[i].Redacted()
	}
	return &ProjectContents{Project: project, Files: files, Jobs: jobs}, nil
}
