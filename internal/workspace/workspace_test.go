package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/identity"
	"github.com/protocaas/protocaas/internal/models"
	"github.com/protocaas/protocaas/internal/permission"
	"github.com/protocaas/protocaas/internal/store"
	"github.com/protocaas/protocaas/internal/testutil"
	"github.com/stretchr/testify/suite"
)

var (
	owner    = identity.Principal{UserID: "github|owner"}
	editor   = identity.Principal{UserID: "github|editor"}
	stranger = identity.Principal{UserID: "github|stranger"}
	admin    = identity.Principal{UserID: "admin|github|root"}
)

type removedOutputs struct {
	jobIDs []string
}

func (r *removedOutputs) RemoveObjects(_ context.Context, jobIDs ...string) {
	r.jobIDs = append(r.jobIDs, jobIDs...)
}

type WorkspaceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.Store
	removed *removedOutputs
	service *Service
}

func TestWorkspaceSuite(t *testing.T) {
	suite.Run(t, new(WorkspaceSuite))
}

func (s *WorkspaceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.New(testutil.OpenTestDB(s.T()), time.Minute)
	s.removed = &removedOutputs{}
	s.service = NewService(s.store, permission.Evaluator{}, s.removed)

	s.Require().NoError(s.store.CreateWorkspace(s.ctx, testutil.Workspace("w1", owner.UserID,
		models.WorkspaceUser{UserID: editor.UserID, Role: models.RoleEditor})))
	s.Require().NoError(s.store.CreateProject(s.ctx, testutil.Project("p1", "w1")))
	s.Require().NoError(s.store.CreateProject(s.ctx, testutil.Project("p2", "w1")))
	for _, p := range []string{"p1", "p2"} {
		s.Require().NoError(s.store.CreateFile(s.ctx, testutil.File("w1", p, "a.nwb", "https://x/a")))
		s.Require().NoError(s.store.CreateJob(s.ctx, testutil.Job("job-"+p, "w1", p, "cr1", "out.nwb")))
		s.Require().NoError(s.store.PutDataBlob(s.ctx, &models.DataBlob{WorkspaceID: "w1", ProjectID: p, SHA1: "abc", Size: 3, Content: "xyz"}))
	}
}

func (s *WorkspaceSuite) TestCreateAndList() {
	_, err := s.service.Create(s.ctx, identity.Principal{}, "anon")
	s.True(errors.Is(err, permission.ErrDenied))

	id, err := s.service.Create(s.ctx, stranger, "mine")
	s.Require().NoError(err)

	listed, err := s.service.List(s.ctx, stranger)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(id, listed[0].WorkspaceID)

	// public but unlisted workspaces stay out of the listing
	s.Require().NoError(s.service.SetProperty(s.ctx, owner, "w1", "publiclyReadable", true))
	listed, err = s.service.List(s.ctx, identity.Principal{})
	s.Require().NoError(err)
	s.Empty(listed)

	s.Require().NoError(s.service.SetProperty(s.ctx, owner, "w1", "listed", true))
	listed, err = s.service.List(s.ctx, identity.Principal{})
	s.Require().NoError(err)
	s.Len(listed, 1)
}

func (s *WorkspaceSuite) TestSetProperty() {
	s.True(errors.Is(s.service.SetProperty(s.ctx, editor, "w1", "name", "x"), permission.ErrDenied))
	s.Require().NoError(s.service.SetProperty(s.ctx, owner, "w1", "computeResourceId", "cr9"))
	s.Require().NoError(s.service.SetProperty(s.ctx, admin, "w1", "name", "renamed"))

	ws, err := s.service.Get(s.ctx, owner, "w1")
	s.Require().NoError(err)
	s.Equal("cr9", ws.ComputeResourceID)
	s.Equal("renamed", ws.Name)

	s.Error(s.service.SetProperty(s.ctx, owner, "w1", "listed", "yes"))
	s.True(errors.Is(s.service.SetProperty(s.ctx, owner, "w1", "ownerId", "github|x"), ErrUnsupportedProperty))
}

func (s *WorkspaceSuite) TestSetUsers() {
	err := s.service.SetUsers(s.ctx, owner, "w1", []models.WorkspaceUser{{UserID: stranger.UserID, Role: "superuser"}})
	s.Error(err)

	s.Require().NoError(s.service.SetUsers(s.ctx, owner, "w1", []models.WorkspaceUser{{UserID: stranger.UserID, Role: models.RoleViewer}}))
	_, err = s.service.Get(s.ctx, stranger, "w1")
	s.NoError(err)

	// the editor lost its role
	_, err = s.service.CreateProject(s.ctx, editor, "w1", "x")
	s.True(errors.Is(err, permission.ErrDenied))
}

func (s *WorkspaceSuite) TestProjects() {
	id, err := s.service.CreateProject(s.ctx, editor, "w1", "new")
	s.Require().NoError(err)

	projects, err := s.service.ListProjects(s.ctx, editor, "w1")
	s.Require().NoError(err)
	s.Len(projects, 3)

	_, err = s.service.ListProjects(s.ctx, stranger, "w1")
	s.True(errors.Is(err, permission.ErrDenied))

	s.Require().NoError(s.service.SetProjectProperty(s.ctx, editor, id, "description", "about"))
	p, err := s.service.GetProject(s.ctx, editor, id)
	s.Require().NoError(err)
	s.Equal("about", p.Description)
	s.True(errors.Is(s.service.SetProjectProperty(s.ctx, editor, id, "workspaceId", "w2"), ErrUnsupportedProperty))
}

func (s *WorkspaceSuite) assertProjectGone(projectID string) {
	_, err := s.store.GetProject(s.ctx, projectID)
	s.True(errors.Is(err, store.ErrNotFound))
	files, err := s.store.ListFiles(s.ctx, projectID)
	s.Require().NoError(err)
	s.Empty(files)
	jobs, err := s.store.ListJobs(s.ctx, store.JobFilter{ProjectID: projectID})
	s.Require().NoError(err)
	s.Empty(jobs)
	_, err = s.store.GetDataBlob(s.ctx, "w1", projectID, "abc")
	s.True(errors.Is(err, store.ErrNotFound))
}

func (s *WorkspaceSuite) TestDeleteProjectCascades() {
	before, err := s.store.GetWorkspace(s.ctx, "w1")
	s.Require().NoError(err)

	s.True(errors.Is(s.service.DeleteProject(s.ctx, stranger, "w1", "p1"), permission.ErrDenied))
	s.Empty(s.removed.jobIDs)
	s.Require().NoError(s.service.DeleteProject(s.ctx, editor, "w1", "p1"))
	s.assertProjectGone("p1")
	s.Equal([]string{"job-p1"}, s.removed.jobIDs)

	_, err = s.store.GetProject(s.ctx, "p2")
	s.NoError(err)

	after, err := s.store.GetWorkspace(s.ctx, "w1")
	s.Require().NoError(err)
	s.Greater(after.TimestampModified, before.TimestampModified)
}

func (s *WorkspaceSuite) TestDeleteWorkspaceCascades() {
	s.True(errors.Is(s.service.Delete(s.ctx, editor, "w1"), permission.ErrDenied))
	s.Require().NoError(s.service.Delete(s.ctx, owner, "w1"))

	s.assertProjectGone("p1")
	s.assertProjectGone("p2")
	s.ElementsMatch([]string{"job-p1", "job-p2"}, s.removed.jobIDs)
	_, err := s.store.GetWorkspace(s.ctx, "w1")
	s.True(errors.Is(err, store.ErrNotFound))
}

func (s *WorkspaceSuite) TestLoadProject() {
	_, err := s.service.LoadProject(s.ctx, identity.Principal{}, "p1")
	s.True(errors.Is(err, permission.ErrDenied))

	s.Require().NoError(s.service.SetProperty(s.ctx, owner, "w1", "publiclyReadable", true))
	contents, err := s.service.LoadProject(s.ctx, identity.Principal{}, "p1")
	s.Require().NoError(err)
	s.Equal("p1", contents.Project.ProjectID)
	s.Len(contents.Files, 1)
	s.Require().Len(contents.Jobs, 1)
	s.Empty(contents.Jobs[0].JobPrivateKey)
}
