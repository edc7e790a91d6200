package permission

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/identity"
	"github.com/protocaas/protocaas/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func workspace() *models.Workspace {
	return &models.Workspace{
		WorkspaceID: "w1",
		OwnerID:     "github|owner",
		Users: datatypes.NewJSONSlice([]models.WorkspaceUser{
			{UserID: "github|ed", Role: models.RoleEditor},
			{UserID: "github|vi", Role: models.RoleViewer},
			{UserID: "github|ad", Role: models.RoleAdmin},
		}),
	}
}

func TestRole(t *testing.T) {
	ws := workspace()
	cases := map[string]models.Role{
		"github|owner":         models.RoleAdmin,
		"github|ed":            models.RoleEditor,
		"github|vi":            models.RoleViewer,
		"github|ad":            models.RoleAdmin,
		"github|stranger":      models.RoleNone,
		"":                     models.RoleNone,
		"admin|github|someone": models.RoleAdmin,
	}
	for user, want := range cases {
		require.Equal(t, want, Role(ws, user), user)
	}

	ws.PubliclyReadable = true
	require.Equal(t, models.RoleViewer, Role(ws, "github|stranger"))
	require.Equal(t, models.RoleViewer, Role(ws, ""))
	require.Equal(t, models.RoleEditor, Role(ws, "github|ed"))
}

func TestOwnerIsAdminRegardlessOfUsersList(t *testing.T) {
	ws := workspace()
	ws.Users = append(ws.Users, models.WorkspaceUser{UserID: "github|owner", Role: models.RoleViewer})
	require.Equal(t, models.RoleAdmin, Role(ws, "github|owner"))
}

func TestPredicates(t *testing.T) {
	ws := workspace()
	editor := identity.Principal{UserID: "github|ed"}
	viewer := identity.Principal{UserID: "github|vi"}
	owner := identity.Principal{UserID: "github|owner"}
	anon := identity.Principal{}

	require.True(t, CanCreateProject(ws, editor))
	require.False(t, CanCreateProject(ws, viewer))
	require.True(t, CanDeleteProject(ws, editor))
	require.False(t, CanDeleteProject(ws, anon))
	require.True(t, CanDeleteWorkspace(ws, owner))
	require.False(t, CanDeleteWorkspace(ws, editor))
	require.True(t, CanDeleteFile(ws, editor))
	require.False(t, CanDeleteFile(ws, viewer))
	require.True(t, CanSetWorkspaceProperty(ws, owner))
	require.False(t, CanSetWorkspaceProperty(ws, editor))
	require.True(t, CanSetWorkspaceUsers(ws, owner))
	require.True(t, CanSetProjectProperty(ws, editor))
	require.True(t, CanCreateJob(ws, editor))
	require.False(t, CanCreateJob(ws, viewer))
	require.False(t, CanCreateWorkspace(anon))
	require.True(t, CanCreateWorkspace(viewer))
}

func TestAnonymousCannotDeleteEvenWhenPublic(t *testing.T) {
	ws := workspace()
	ws.PubliclyReadable = true
	require.False(t, CanDeleteFile(ws, identity.Principal{}))
	require.False(t, CanDeleteProject(ws, identity.Principal{}))
}

func TestBoundClientBypass(t *testing.T) {
	e := Evaluator{DefaultComputeResourceID: "default-cr"}
	ws := workspace()
	client := identity.Principal{ClientID: "default-cr"}

	require.True(t, e.CanReadWorkspace(ws, client))
	require.True(t, e.CanSetFile(ws, client))
	require.False(t, CanDeleteFile(ws, client))

	ws.ComputeResourceID = "bound-cr"
	require.False(t, e.CanReadWorkspace(ws, client))
	require.True(t, e.CanSetFile(ws, identity.Principal{ClientID: "bound-cr"}))

	require.False(t, Evaluator{}.CanReadWorkspace(&models.Workspace{}, identity.Principal{ClientID: "x"}))
}

func TestDeny(t *testing.T) {
	err := Deny("delete project")
	require.True(t, errors.Is(err, ErrDenied))
	require.Contains(t, err.Error(), "delete project")
}

func TestCanManageComputeResource(t *testing.T) {
	cr := &models.ComputeResource{ComputeResourceID: "cr", OwnerID: "github|owner"}
	require.True(t, CanManageComputeResource(cr, identity.Principal{UserID: "github|owner"}))
	require.False(t, CanManageComputeResource(cr, identity.Principal{UserID: "github|ed"}))
	require.True(t, CanManageComputeResource(cr, identity.Principal{UserID: "admin|github|x"}))
	require.False(t, CanManageComputeResource(cr, identity.Principal{}))
}
