package file

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/identity"
	"github.com/protocaas/protocaas/internal/models"
	"github.com/protocaas/protocaas/internal/permission"
	"github.com/protocaas/protocaas/internal/store"
	"github.com/protocaas/protocaas/internal/testutil"
	"github.com/stretchr/testify/suite"
	"gorm.io/datatypes"
)

var (
	owner  = identity.Principal{UserID: "github|owner"}
	viewer = identity.Principal{UserID: "github|viewer"}
	bound  = identity.Principal{ClientID: "cr1"}
)

type FileSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.Store
	service *Service
	server  *httptest.Server
}

func TestFileSuite(t *testing.T) {
	suite.Run(t, new(FileSuite))
}

func (s *FileSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.New(testutil.OpenTestDB(s.T()), time.Minute)

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "remote text")
	}))
	s.T().Cleanup(s.server.Close)

	s.service = NewService(s.store, permission.Evaluator{}, NewRemote(time.Second), 16)

	ws := testutil.Workspace("w1", owner.UserID, models.WorkspaceUser{UserID: viewer.UserID, Role: models.RoleViewer})
	ws.ComputeResourceID = "cr1"
	s.Require().NoError(s.store.CreateWorkspace(s.ctx, ws))
	s.Require().NoError(s.store.CreateProject(s.ctx, testutil.Project("p1", "w1")))
	s.Require().NoError(s.store.CreateWorkspace(s.ctx, testutil.Workspace("w2", owner.UserID)))
}

func text(s string) *string { return &s }

func (s *FileSuite) TestURLRoundTrip() {
	url := s.server.URL + "/data.nwb"
	id, err := s.service.Set(s.ctx, owner, SetRequest{
		WorkspaceID: "w1", ProjectID: "p1", FileName: "data.nwb",
		Content: "url:" + url, Size: 11,
		Metadata: map[string]any{"dandisetId": "000001"},
	})
	s.Require().NoError(err)
	s.NotEmpty(id)

	f, err := s.service.Get(s.ctx, viewer, "p1", "data.nwb")
	s.Require().NoError(err)
	s.Equal("url:"+url, f.Content)
	s.Equal(int64(11), f.Size)
	s.Equal("000001", f.Metadata["dandisetId"])
	s.Equal(owner.UserID, f.UserID)

	got, err := s.service.FetchText(s.ctx, viewer, "p1", "data.nwb")
	s.Require().NoError(err)
	s.Equal("remote text", got)
}

func (s *FileSuite) TestInlineDataStaysInline() {
	_, err := s.service.Set(s.ctx, owner, SetRequest{WorkspaceID: "w1", ProjectID: "p1", FileName: "a.txt", FileData: text("short")})
	s.Require().NoError(err)

	f, err := s.store.GetFile(s.ctx, "p1", "a.txt")
	s.Require().NoError(err)
	s.Equal("data:short", f.Content)
	s.Equal(int64(5), f.Size)

	got, err := s.service.FetchText(s.ctx, owner, "p1", "a.txt")
	s.Require().NoError(err)
	s.Equal("short", got)
}

func (s *FileSuite) TestLargeDataIsExternalizedToBlob() {
	body := strings.Repeat("x", 100)
	sum := sha1.Sum([]byte(body))
	digest := hex.EncodeToString(sum[:])

	_, err := s.service.Set(s.ctx, owner, SetRequest{WorkspaceID: "w1", ProjectID: "p1", FileName: "big.json", FileData: &body})
	s.Require().NoError(err)

	f, err := s.store.GetFile(s.ctx, "p1", "big.json")
	s.Require().NoError(err)
	s.Equal("blob:"+digest, f.Content)
	s.Equal(int64(100), f.Size)

	got, err := s.service.FetchText(s.ctx, owner, "p1", "big.json")
	s.Require().NoError(err)
	s.Equal(body, got)

	blob, err := s.service.GetDataBlob(s.ctx, viewer, "w1", "p1", digest)
	s.Require().NoError(err)
	s.Equal(body, blob)

	_, err = s.service.GetDataBlob(s.ctx, viewer, "w2", "p1", digest)
	s.True(errors.Is(err, ErrIncorrectWorkspace))
}

func (s *FileSuite) TestSetRequiresExactlyOneContentForm() {
	_, err := s.service.Set(s.ctx, owner, SetRequest{WorkspaceID: "w1", ProjectID: "p1", FileName: "a"})
	s.Error(err)

	_, err = s.service.Set(s.ctx, owner, SetRequest{WorkspaceID: "w1", ProjectID: "p1", FileName: "a", FileData: text("x"), Content: "data:y"})
	s.Error(err)

	_, err = s.service.Set(s.ctx, owner, SetRequest{WorkspaceID: "w1", ProjectID: "p1", FileName: "a", Content: "ftp:x"})
	s.Error(err)
}

func (s *FileSuite) TestSetPermissions() {
	req := SetRequest{WorkspaceID: "w1", ProjectID: "p1", FileName: "a", FileData: text("x")}

	_, err := s.service.Set(s.ctx, viewer, req)
	s.True(errors.Is(err, permission.ErrDenied))

	_, err = s.service.Set(s.ctx, identity.Principal{}, req)
	s.True(errors.Is(err, permission.ErrDenied))

	// the workspace's compute resource may write without a role
	_, err = s.service.Set(s.ctx, bound, req)
	s.NoError(err)

	req.WorkspaceID = "w2"
	_, err = s.service.Set(s.ctx, owner, req)
	s.True(errors.Is(err, ErrIncorrectWorkspace))
}

func (s *FileSuite) TestReplacingFileDeletesReferencingJobs() {
	s.Require().NoError(s.store.CreateFile(s.ctx, testutil.File("w1", "p1", "in.nwb", "https://x/in")))

	consumer := testutil.Job("consumer", "w1", "p1", "cr1")
	consumer.InputFiles = datatypes.NewJSONSlice([]models.JobInputFile{{Name: "input", FileName: "in.nwb"}})
	s.Require().NoError(s.store.CreateJob(s.ctx, consumer))
	s.Require().NoError(s.store.CreateJob(s.ctx, testutil.Job("unrelated", "w1", "p1", "cr1", "other.nwb")))

	_, err := s.service.Set(s.ctx, owner, SetRequest{WorkspaceID: "w1", ProjectID: "p1", FileName: "in.nwb", Content: "url:https://x/new"})
	s.Require().NoError(err)

	_, err = s.store.GetJob(s.ctx, "consumer")
	s.True(errors.Is(err, store.ErrNotFound))
	_, err = s.store.GetJob(s.ctx, "unrelated")
	s.NoError(err)

	f, err := s.store.GetFile(s.ctx, "p1", "in.nwb")
	s.Require().NoError(err)
	s.Equal("url:https://x/new", f.Content)
}

func (s *FileSuite) TestReplaceSparesKeptJob() {
	s.Require().NoError(s.store.CreateJob(s.ctx, testutil.Job("producer", "w1", "p1", "cr1", "out.nwb")))

	err := s.store.Transaction(s.ctx, func(tx *store.Store) error {
		return Replace(s.ctx, tx, testutil.File("w1", "p1", "out.nwb", "https://x/out"), "producer")
	})
	s.Require().NoError(err)

	_, err = s.store.GetJob(s.ctx, "producer")
	s.NoError(err)
}

func (s *FileSuite) TestDeleteCascades() {
	s.Require().NoError(s.store.CreateFile(s.ctx, testutil.File("w1", "p1", "out.nwb", "https://x/out")))
	s.Require().NoError(s.store.CreateJob(s.ctx, testutil.Job("producer", "w1", "p1", "cr1", "out.nwb")))

	s.True(errors.Is(s.service.Delete(s.ctx, viewer, "w1", "p1", "out.nwb"), permission.ErrDenied))
	s.True(errors.Is(s.service.Delete(s.ctx, bound, "w1", "p1", "out.nwb"), permission.ErrDenied))

	s.Require().NoError(s.service.Delete(s.ctx, owner, "w1", "p1", "out.nwb"))

	_, err := s.store.GetFile(s.ctx, "p1", "out.nwb")
	s.True(errors.Is(err, store.ErrNotFound))
	_, err = s.store.GetJob(s.ctx, "producer")
	s.True(errors.Is(err, store.ErrNotFound))

	s.True(errors.Is(s.service.Delete(s.ctx, owner, "w1", "p1", "out.nwb"), store.ErrNotFound))
}

func (s *FileSuite) TestRename() {
	s.Require().NoError(s.store.CreateFile(s.ctx, testutil.File("w1", "p1", "a.nwb", "https://x/a")))
	s.Require().NoError(s.store.CreateFile(s.ctx, testutil.File("w1", "p1", "b.nwb", "https://x/b")))
	s.Require().NoError(s.store.CreateJob(s.ctx, testutil.Job("producer", "w1", "p1", "cr1", "a.nwb")))

	err := s.service.Rename(s.ctx, owner, "w1", "p1", "a.nwb", "b.nwb")
	s.True(errors.Is(err, ErrFileExists))

	s.Require().NoError(s.service.Rename(s.ctx, owner, "w1", "p1", "a.nwb", "c.nwb"))

	f, err := s.store.GetFile(s.ctx, "p1", "c.nwb")
	s.Require().NoError(err)
	s.Equal("url:https://x/a", f.Content)
	_, err = s.store.GetJob(s.ctx, "producer")
	s.True(errors.Is(err, store.ErrNotFound))
}

func (s *FileSuite) TestDuplicate() {
	src := testutil.File("w1", "p1", "a.nwb", "https://x/a")
	src.JobID = "producer"
	s.Require().NoError(s.store.CreateFile(s.ctx, src))

	id, err := s.service.Duplicate(s.ctx, owner, "w1", "p1", "a.nwb", "copy.nwb")
	s.Require().NoError(err)
	s.NotEqual(src.FileID, id)

	dup, err := s.store.GetFile(s.ctx, "p1", "copy.nwb")
	s.Require().NoError(err)
	s.Equal(src.Content, dup.Content)
	s.Empty(dup.JobID)

	_, err = s.service.Duplicate(s.ctx, owner, "w1", "p1", "a.nwb", "copy.nwb")
	s.True(errors.Is(err, ErrFileExists))
}

func (s *FileSuite) TestReadsRequireReadAccess() {
	s.Require().NoError(s.store.CreateFile(s.ctx, testutil.File("w1", "p1", "a.nwb", "https://x/a")))

	_, err := s.service.List(s.ctx, identity.Principal{UserID: "github|stranger"}, "p1")
	s.True(errors.Is(err, permission.ErrDenied))

	files, err := s.service.List(s.ctx, bound, "p1")
	s.Require().NoError(err)
	s.Len(files, 1)
}

func (s *FileSuite) TestRemoteSizeProbe() {
	remote := NewRemote(time.Second)

	size, err := remote.Size(s.ctx, s.server.URL+"/x")
	s.Require().NoError(err)
	s.Equal(int64(len("remote text")), size)

	_, err = remote.Size(s.ctx, s.server.URL+"/missing")
	s.Error(err)
}

func (s *FileSuite) TestRemoteSizeProbeDoesNotWaitForBody() {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	size, err := NewRemote(5*time.Second).Size(s.ctx, slow.URL)
	s.Require().NoError(err)
	s.Equal(int64(1000), size)
}

func (s *FileSuite) TestRemoteSizeProbeTimesOut() {
	release := make(chan struct{})
	hung := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer hung.Close()
	defer close(release)

	_, err := NewRemote(50*time.Millisecond).Size(s.ctx, hung.URL)
	s.Error(err)
}
