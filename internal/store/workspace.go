package store

import (
	"context"
	"slices"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/models"
)

// GetWorkspace reads a workspace straight from the database and,
// outside a transaction, refreshes the cache with it.
func (s *Store) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	ws, err := first[models.Workspace](s.conn(ctx).Where("workspace_id = ?", id), "workspace", id)
	if err != nil {
		return nil, err
	}
	if s.pending == nil {
		s.workspaces.Set(id, cloneWorkspace(*ws))
	}
	return ws, nil
}

// CachedWorkspace serves id from the cache when fresh.
func (s *Store) CachedWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	if ws, ok := s.workspaces.Get(id); ok {
		ws = cloneWorkspace(ws)
		return &ws, nil
	}
	return s.GetWorkspace(ctx, id)
}

func (s *Store) ListWorkspaces(ctx context.Context) ([]models.Workspace, error) {
	var out []models.Workspace
	if err := s.conn(ctx).Order("timestamp_created ASC").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "list workspaces")
	}
	return out, validateAll("workspace", out)
}

func (s *Store) CreateWorkspace(ctx context.Context, ws *models.Workspace) error {
	if err := checkValid("workspace", ws); err != nil {
		return err
	}
	return errors.Wrap(s.conn(ctx).Create(ws).Error, "create workspace")
}

// UpdateWorkspace applies column updates and invalidates the cache.
func (s *Store) UpdateWorkspace(ctx context.Context, id string, updates map[string]any) error {
	defer s.invalidateWorkspace(id)
	res := s.conn(ctx).Model(&models.Workspace{}).Where("workspace_id = ?", id).Updates(updates)
	return checkWrite(res, "workspace", id)
}

// TouchWorkspace bumps the modification timestamp.
func (s *Store) TouchWorkspace(ctx context.Context, id string) error {
	return s.UpdateWorkspace(ctx, id, map[string]any{"timestamp_modified": models.Now()})
}

func (s *Store) DeleteWorkspace(ctx context.Context, id string) error {
	defer s.invalidateWorkspace(id)
	res := s.conn(ctx).Where("workspace_id = ?", id).Delete(&models.Workspace{})
	return checkWrite(res, "workspace", id)
}

func cloneWorkspace(ws models.Workspace) models.Workspace {
	ws.Users = slices.Clone(ws.Users)
	return ws
}
