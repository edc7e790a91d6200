// Package permission derives workspace roles and answers whether a
// principal may perform an action. Every function here is pure.
package permission

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/identity"
	"github.com/protocaas/protocaas/internal/models"
)

// ErrDenied is wrapped by every authorization failure.
var ErrDenied = errors.New("permission denied")

// Deny returns ErrDenied annotated with the refused action.
func Deny(action string) error {
	return errors.Wrapf(ErrDenied, "user does not have permission to %s", action)
}

// Role returns the role userID holds in ws. userID must already be
// verified.
func Role(ws *models.Workspace, userID string) models.Role {
	if strings.HasPrefix(userID, identity.AdminPrefix) {
		return models.RoleAdmin
	}
	if userID != "" {
		if ws.OwnerID == userID {
			return models.RoleAdmin
		}
		for _, u := range ws.Users {
			if u.UserID == userID {
				return u.Role
			}
		}
	}
	if ws.PubliclyReadable {
		return models.RoleViewer
	}
	return models.RoleNone
}

func canEdit(role models.Role) bool {
	return role == models.RoleEditor || role == models.RoleAdmin
}

// Evaluator holds the configuration the predicates depend on.
type Evaluator struct {
	// DefaultComputeResourceID is used for workspaces with no bound
	// compute resource.
	DefaultComputeResourceID string
}

// ComputeResourceID returns the compute resource serving ws.
func (e Evaluator) ComputeResourceID(ws *models.Workspace) string {
	if ws.ComputeResourceID != "" {
		return ws.ComputeResourceID
	}
	return e.DefaultComputeResourceID
}

// isBoundClient reports whether the caller is the compute resource
// serving ws.
func (e Evaluator) isBoundClient(ws *models.Workspace, p identity.Principal) bool {
	if p.ClientID == "" {
		return false
	}
	id := e.ComputeResourceID(ws)
	return id != "" && id == p.ClientID
}

func (e Evaluator) CanReadWorkspace(ws *models.Workspace, p identity.Principal) bool {
	if e.isBoundClient(ws, p) {
		return true
	}
	return Role(ws, p.UserID) != models.RoleNone
}

func (e Evaluator) CanSetFile(ws *models.Workspace, p identity.Principal) bool {
	if e.isBoundClient(ws, p) {
		return true
	}
	return canEdit(Role(ws, p.UserID))
}

func CanCreateWorkspace(p identity.Principal) bool {
	return p.UserID != ""
}

func CanCreateProject(ws *models.Workspace, p identity.Principal) bool {
	return canEdit(Role(ws, p.UserID))
}

func CanDeleteProject(ws *models.Workspace, p identity.Principal) bool {
	return p.UserID != "" && canEdit(Role(ws, p.UserID))
}

func CanDeleteWorkspace(ws *models.Workspace, p identity.Principal) bool {
	return p.UserID != "" && Role(ws, p.UserID) == models.RoleAdmin
}

func CanDeleteFile(ws *models.Workspace, p identity.Principal) bool {
	return p.UserID != "" && canEdit(Role(ws, p.UserID))
}

func CanSetWorkspaceProperty(ws *models.Workspace, p identity.Principal) bool {
	return Role(ws, p.UserID) == models.RoleAdmin
}

func CanSetWorkspaceUsers(ws *models.Workspace, p identity.Principal) bool {
	return Role(ws, p.UserID) == models.RoleAdmin
}

func CanSetProjectProperty(ws *models.Workspace, p identity.Principal) bool {
	return canEdit(Role(ws, p.UserID))
}

func CanCreateJob(ws *models.Workspace, p identity.Principal) bool {
	return p.UserID != "" && canEdit(Role(ws, p.UserID))
}

func CanDeleteJob(ws *models.Workspace, p identity.Principal) bool {
	return p.UserID != "" && canEdit(Role(ws, p.UserID))
}

func CanSetJobProperty(ws *models.Workspace, p identity.Principal) bool {
	return canEdit(Role(ws, p.UserID))
}

// CanManageComputeResource reports whether the caller owns cr.
func CanManageComputeResource(cr *models.ComputeResource, p identity.Principal) bool {
	if p.IsAdmin() {
		return true
	}
	return p.UserID != "" && cr.OwnerID == p.UserID
}
