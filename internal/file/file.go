// Package file implements the project file operations: tagged content
// storage, blob externalization, and the job cascades that keep job
// records from referencing files that no longer exist.
package file

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/identity"
	"github.com/protocaas/protocaas/internal/models"
	"github.com/protocaas/protocaas/internal/permission"
	"github.com/protocaas/protocaas/internal/store"
	"github.com/protocaas/protocaas/pkg/log"
	"gorm.io/datatypes"
)

var (
	ErrIncorrectWorkspace = errors.New("incorrect workspace ID")
	ErrFileExists         = errors.New("file already exists")
)

// DefaultInlineLimit is the longest data: payload kept inline.
const DefaultInlineLimit = 2048

type Service struct {
	store       *store.Store
	evaluator   permission.Evaluator
	fetcher     Fetcher
	inlineLimit int
}

func NewService(s *store.Store, evaluator permission.Evaluator, fetcher Fetcher, inlineLimit int) *Service {
	if inlineLimit <= 0 {
		inlineLimit = DefaultInlineLimit
	}
	return &Service{store: s, evaluator: evaluator, fetcher: fetcher, inlineLimit: inlineLimit}
}

// SetRequest creates or replaces a file. FileData is raw text; Content
// is an already tagged url:, blob: or data: string. Exactly one must be
// set.
type SetRequest struct {
	WorkspaceID string         `json:"workspaceId"`
	ProjectID   string         `json:"projectId"`
	FileName    string         `json:"fileName"`
	FileData    *string        `json:"fileData,omitempty"`
	Content     string         `json:"content,omitempty"`
	Size        int64          `json:"size"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	JobID       string         `json:"jobId,omitempty"`
}

// project loads the project and its workspace, checking that the
// request named the project's real workspace.
func (s *Service) project(ctx context.Context, workspaceID, projectID string) (*models.Workspace, *models.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	if workspaceID != "" && project.WorkspaceID != workspaceID {
		return nil, nil, ErrIncorrectWorkspace
	}
	ws, err := s.store.GetWorkspace(ctx, project.WorkspaceID)
	if err != nil {
		return nil, nil, err
	}
	return ws, project, nil
}

// readable is project for read paths, served from the cache.
func (s *Service) readable(ctx context.Context, p identity.Principal, projectID string) (*models.Project, error) {
	project, err := s.store.CachedProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ws, err := s.store.CachedWorkspace(ctx, project.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if !s.evaluator.CanReadWorkspace(ws, p) {
		return nil, permission.Deny("read this workspace")
	}
	return project, nil
}

func (s *Service) Get(ctx context.Context, p identity.Principal, projectID, fileName string) (*models.File, error) {
	if _, err := s.readable(ctx, p, projectID); err != nil {
		return nil, err
	}
	return s.store.GetFile(ctx, projectID, fileName)
}

func (s *Service) List(ctx context.Context, p identity.Principal, projectID string) ([]models.File, error) {
	if _, err := s.readable(ctx, p, projectID); err != nil {
		return nil, err
	}
	return s.store.ListFiles(ctx, projectID)
}

// Set stores the file and returns its new id. An existing file with the
// same name is replaced, and jobs referencing it are deleted.
func (s *Service) Set(ctx context.Context, p identity.Principal, req SetRequest) (string, error) {
	ws, project, err := s.project(ctx, req.WorkspaceID, req.ProjectID)
	if err != nil {
		return "", err
	}
	if !s.evaluator.CanSetFile(ws, p) {
		return "", permission.Deny("set files in this workspace")
	}

	content, size, blob, err := s.content(req, project)
	if err != nil {
		return "", err
	}

	userID := p.UserID
	if userID == "" {
		userID = p.ClientID
	}
	f := &models.File{
		FileID:           uuid.NewString(),
		ProjectID:        project.ProjectID,
		WorkspaceID:      project.WorkspaceID,
		FileName:         req.FileName,
		UserID:           userID,
		Size:             size,
		TimestampCreated: models.Now(),
		Content:          content,
		Metadata:         datatypes.JSONMap(req.Metadata),
		JobID:            req.JobID,
	}
	if f.Metadata == nil {
		f.Metadata = datatypes.JSONMap{}
	}

	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if blob != nil {
			if err := tx.PutDataBlob(ctx, blob); err != nil {
				return err
			}
		}
		if err := Replace(ctx, tx, f, ""); err != nil {
			return err
		}
		return touch(ctx, tx, project)
	})
	if err != nil {
		return "", err
	}
	return f.FileID, nil
}

// content resolves the stored content string for req, externalizing
// large inline payloads into a data blob.
func (s *Service) content(req SetRequest, project *models.Project) (string, int64, *models.DataBlob, error) {
	var (
		content string
		size    = req.Size
	)
	switch {
	case req.FileData != nil && req.Content != "":
		return "", 0, nil, errors.New("only one of fileData and content may be given")
	case req.FileData != nil:
		content = string(models.ContentData) + ":" + *req.FileData
		size = int64(len(*req.FileData))
	case req.Content != "":
		content = req.Content
	default:
		return "", 0, nil, errors.New("one of fileData and content is required")
	}

	kind, body, err := models.ParseContent(content)
	if err != nil {
		return "", 0, nil, err
	}
	if kind != models.ContentData || len(body) <= s.inlineLimit {
		return content, size, nil, nil
	}

	sum := sha1.Sum([]byte(body))
	blob := &models.DataBlob{
		WorkspaceID: project.WorkspaceID,
		ProjectID:   project.ProjectID,
		SHA1:        hex.EncodeToString(sum[:]),
		Size:        int64(len(body)),
		Content:     body,
	}
	return string(models.ContentBlob) + ":" + blob.SHA1, blob.Size, blob, nil
}

// Replace writes f into its project, first removing any file of the
// same name together with the jobs referencing it. keepJobID is spared
// from that cascade, for a job materializing its own outputs.
func Replace(ctx context.Context, tx *store.Store, f *models.File, keepJobID string) error {
	if err := Remove(ctx, tx, f.ProjectID, f.FileName, keepJobID); err != nil {
		return err
	}
	return tx.CreateFile(ctx, f)
}

// Remove deletes the named file if present, along with every job
// other than keepJobID that declares it as an input or output.
func Remove(ctx context.Context, tx *store.Store, projectID, fileName, keepJobID string) error {
	existing, err := tx.FindFile(ctx, projectID, fileName)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := tx.DeleteFile(ctx, projectID, fileName); err != nil {
			return err
		}
	}
	return deleteReferencingJobs(ctx, tx, projectID, fileName, keepJobID)
}

func deleteReferencingJobs(ctx context.Context, tx *store.Store, projectID, fileName, keepJobID string) error {
	jobs, err := tx.ListJobs(ctx, store.JobFilter{ProjectID: projectID})
	if err != nil {
		return err
	}
	var ids []string
	for i := range jobs {
		j := &jobs[i]
		if j.JobID == keepJobID {
			continue
		}
		if j.DeclaresInput(fileName) || j.DeclaresOutput(fileName) {
			ids = append(ids, j.JobID)
		}
	}
	if len(ids) > 0 {
		log.Info("deleting jobs referencing file",
			"project_id", projectID,
			"file_name", fileName,
			"job_ids", ids,
		)
	}
	return tx.DeleteJobs(ctx, ids)
}

func (s *Service) Delete(ctx context.Context, p identity.Principal, workspaceID, projectID, fileName string) error {
	ws, project, err := s.project(ctx, workspaceID, projectID)
	if err != nil {
		return err
	}
	if !permission.CanDeleteFile(ws, p) {
		return permission.Deny("delete files in this workspace")
	}
	return s.store.Transaction(ctx, func(tx *store.Store) error {
		if _, err := tx.GetFile(ctx, projectID, fileName); err != nil {
			return err
		}
		if err := Remove(ctx, tx, projectID, fileName, ""); err != nil {
			return err
		}
		return touch(ctx, tx, project)
	})
}

// Rename moves a file to a new name. Jobs referencing the old name are
// deleted since their records would otherwise dangle.
func (s *Service) Rename(ctx context.Context, p identity.Principal, workspaceID, projectID, fileName, newFileName string) error {
	ws, project, err := s.project(ctx, workspaceID, projectID)
	if err != nil {
		return err
	}
	if !s.evaluator.CanSetFile(ws, p) {
		return permission.Deny("rename files in this workspace")
	}
	return s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := noFile(ctx, tx, projectID, newFileName); err != nil {
			return err
		}
		if err := tx.RenameFile(ctx, projectID, fileName, newFileName); err != nil {
			return err
		}
		if err := deleteReferencingJobs(ctx, tx, projectID, fileName, ""); err != nil {
			return err
		}
		return touch(ctx, tx, project)
	})
}

// Duplicate copies a file's content and metadata under a new name. The
// copy has no producing job.
func (s *Service) Duplicate(ctx context.Context, p identity.Principal, workspaceID, projectID, fileName, newFileName string) (string, error) {
	ws, project, err := s.project(ctx, workspaceID, projectID)
	if err != nil {
		return "", err
	}
	if !s.evaluator.CanSetFile(ws, p) {
		return "", permission.Deny("duplicate files in this workspace")
	}

	var id string
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		src, err := tx.GetFile(ctx, projectID, fileName)
		if err != nil {
			return err
		}
		if err := noFile(ctx, tx, projectID, newFileName); err != nil {
			return err
		}
		dup := *src
		dup.FileID = uuid.NewString()
		dup.FileName = newFileName
		dup.JobID = ""
		dup.TimestampCreated = models.Now()
		if p.UserID != "" {
			dup.UserID = p.UserID
		}
		if err := tx.CreateFile(ctx, &dup); err != nil {
			return err
		}
		id = dup.FileID
		return touch(ctx, tx, project)
	})
	return id, err
}

func noFile(ctx context.Context, tx *store.Store, projectID, fileName string) error {
	existing, err := tx.FindFile(ctx, projectID, fileName)
	if err != nil {
		return err
	}
	if existing != nil {
		return errors.Wrap(ErrFileExists, fileName)
	}
	return nil
}

// GetDataBlob returns the content stored under sha1.
func (s *Service) GetDataBlob(ctx context.Context, p identity.Principal, workspaceID, projectID, sha1 string) (string, error) {
	project, err := s.readable(ctx, p, projectID)
	if err != nil {
		return "", err
	}
	if project.WorkspaceID != workspaceID {
		return "", ErrIncorrectWorkspace
	}
	blob, err := s.store.GetDataBlob(ctx, workspaceID, projectID, sha1)
	if err != nil {
		return "", err
	}
	return blob.Content, nil
}

// FetchText resolves a file's content to text, whatever its form.
func (s *Service) FetchText(ctx context.Context, p identity.Principal, projectID, fileName string) (string, error) {
	f, err := s.Get(ctx, p, projectID, fileName)
	if err != nil {
		return "", err
	}
	kind, body, err := models.ParseContent(f.Content)
	if err != nil {
		return "", err
	}
	switch kind {
	case models.ContentData:
		return body, nil
	case models.ContentBlob:
		blob, err := s.store.GetDataBlob(ctx, f.WorkspaceID, f.ProjectID, body)
		if err != nil {
			return "", err
		}
		return blob.Content, nil
	default:
		if s.fetcher == nil {
			return "", errors.Errorf("unable to fetch file text for file %s", f.FileName)
		}
		return s.fetcher.Text(ctx, strings.TrimSpace(body))
	}
}

func touch(ctx context.Context, tx *store.Store, project *models.Project) error {
	now := models.Now()
	if err := tx.UpdateProject(ctx, project.ProjectID, map[string]any{"timestamp_modified": now}); err != nil {
		return err
	}
	return tx.TouchWorkspace(ctx, project.WorkspaceID)
}
