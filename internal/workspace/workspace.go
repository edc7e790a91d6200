// Package workspace implements the workspace and project operations,
// including the deletion cascades down to files, jobs and data blobs.
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
	"gorm.io/datatypes"
)

var (
	ErrIncorrectWorkspace  = errors.New("incorrect workspace ID")
	ErrUnsupportedProperty = errors.New("unsupported property")
)

const idLength = 8

// OutputRemover deletes the uploaded output objects of deleted jobs.
type OutputRemover interface {
	RemoveObjects(ctx context.Context, jobIDs ...string)
}

type Service struct {
	store     *store.Store
	evaluator permission.Evaluator
	outputs   OutputRemover
}

// NewService returns the workspace service. outputs may be nil when no
// output bucket is configured.
func NewService(s *store.Store, evaluator permission.Evaluator, outputs OutputRemover) *Service {
	return &Service{store: s, evaluator: evaluator, outputs: outputs}
}

func (s *Service) removeOutputs(ctx context.Context, jobIDs []string) {
	if s.outputs != nil && len(jobIDs) > 0 {
		s.outputs.RemoveObjects(ctx, jobIDs...)
	}
}

// member reports whether p appears in ws by ownership or explicit role.
func member(ws *models.Workspace, p identity.Principal) bool {
	if p.UserID == "" {
		return false
	}
	if p.IsAdmin() || ws.OwnerID == p.UserID {
		return true
	}
	for _, u := range ws.Users {
		if u.UserID == p.UserID {
			return true
		}
	}
	return false
}

// List returns the workspaces p can read that are either listed or
// that p belongs to.
func (s *Service) List(ctx context.Context, p identity.Principal) ([]models.Workspace, error) {
	all, err := s.store.ListWorkspaces(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Workspace, 0, len(all))
	for i := range all {
		ws := &all[i]
		if !s.evaluator.CanReadWorkspace(ws, p) {
			continue
		}
		if ws.Listed || member(ws, p) {
			out = append(out, *ws)
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, p identity.Principal, workspaceID string) (*models.Workspace, error) {
	ws, err := s.store.CachedWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !s.evaluator.CanReadWorkspace(ws, p) {
		return nil, permission.Deny("read this workspace")
	}
	return ws, nil
}

func (s *Service) Create(ctx context.Context, p identity.Principal, name string) (string, error) {
	if !permission.CanCreateWorkspace(p) {
		return "", permission.Deny("create workspaces")
	}
	now := models.Now()
	ws := &models.Workspace{
		WorkspaceID:       randomid.New(idLength),
		OwnerID:           p.UserID,
		Name:              name,
		Users:             datatypes.NewJSONSlice([]models.WorkspaceUser{}),
		TimestampCreated:  now,
		TimestampModified: now,
	}
	if err := s.store.CreateWorkspace(ctx, ws); err != nil {
		return "", err
	}
	log.Info("workspace created", "workspace_id", ws.WorkspaceID, "owner_id", ws.OwnerID)
	return ws.WorkspaceID, nil
}

// Delete removes the workspace and, through each project, everything
// it contains.
func (s *Service) Delete(ctx context.Context, p identity.Principal, workspaceID string) error {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !permission.CanDeleteWorkspace(ws, p) {
		return permission.Deny("delete this workspace")
	}
	var jobIDs []string
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		jobIDs = nil
		projects, err := tx.ListProjects(ctx, workspaceID)
		if err != nil {
			return err
		}
		for _, project := range projects {
			ids, err := deleteProject(ctx, tx, project.ProjectID)
			if err != nil {
				return err
			}
			jobIDs = append(jobIDs, ids...)
		}
		return tx.DeleteWorkspace(ctx, workspaceID)
	})
	if err != nil {
		return err
	}
	s.removeOutputs(ctx, jobIDs)
	return nil
}

func (s *Service) SetUsers(ctx context.Context, p identity.Principal, workspaceID string, users []models.WorkspaceUser) error {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !permission.CanSetWorkspaceUsers(ws, p) {
		return permission.Deny("set users of this workspace")
	}
	if users == nil {
		users = []models.WorkspaceUser{}
	}
	candidate := *ws
	candidate.Users = datatypes.NewJSONSlice(users)
	if err := candidate.Validate(); err != nil {
		return errors.Wrap(err, "set workspace users")
	}
	return s.store.UpdateWorkspace(ctx, workspaceID, map[string]any{
		"users":              candidate.Users,
		"timestamp_modified": models.Now(),
	})
}

var workspaceProperties = map[string]struct {
	column  string
	boolean bool
}{
	"name":              {column: "name"},
	"description":       {column: "description"},
	"computeResourceId": {column: "compute_resource_id"},
	"publiclyReadable":  {column: "publicly_readable", boolean: true},
	"listed":            {column: "listed", boolean: true},
}

// SetProperty sets one of name, description, publiclyReadable, listed
// or computeResourceId.
func (s *Service) SetProperty(ctx context.Context, p identity.Principal, workspaceID, property string, value any) error {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !permission.CanSetWorkspaceProperty(ws, p) {
		return permission.Deny("set properties of this workspace")
	}

	prop, ok := workspaceProperties[property]
	if !ok {
		return errors.Wrap(ErrUnsupportedProperty, property)
	}
	var v any
	if prop.boolean {
		v, err = asBool(property, value)
	} else {
		v, err = asString(property, value)
	}
	if err != nil {
		return err
	}
	return s.store.UpdateWorkspace(ctx, workspaceID, map[string]any{
		prop.column:          v,
		"timestamp_modified": models.Now(),
	})
}

func asString(property string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		return "", errors.Errorf("%s must be a string, got %T", property, value)
	}
}

func asBool(property string, value any) (bool, error) {
	v, ok := value.(bool)
	if !ok {
		return false, errors.Errorf("%s must be a boolean, got %T", property, value)
	}
	return v, nil
}
