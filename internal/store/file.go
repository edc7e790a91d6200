package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/models"
	"gorm.io/gorm/clause"
)

func (s *Store) GetFile(ctx context.Context, projectID, fileName string) (*models.File, error) {
	return first[models.File](
		s.conn(ctx).Where("project_id = ? AND file_name = ?", projectID, fileName),
		"file", projectID+"/"+fileName,
	)
}

// FindFile is GetFile that reports absence as nil instead of an error.
func (s *Store) FindFile(ctx context.Context, projectID, fileName string) (*models.File, error) {
	f, err := s.GetFile(ctx, projectID, fileName)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return f, err
}

func (s *Store) ListFiles(ctx context.Context, projectID string) ([]models.File, error) {
	var out []models.File
	err := s.conn(ctx).
		Where("project_id = ?", projectID).
		Order("file_name ASC").
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "list files")
	}
	return out, validateAll("file", out)
}

func (s *Store) CreateFile(ctx context.Context, f *models.File) error {
	if err := checkValid("file", f); err != nil {
		return err
	}
	return errors.Wrap(s.conn(ctx).Create(f).Error, "create file")
}

func (s *Store) RenameFile(ctx context.Context, projectID, fileName, newFileName string) error {
	res := s.conn(ctx).Model(&models.File{}).
		Where("project_id = ? AND file_name = ?", projectID, fileName).
		Update("file_name", newFileName)
	return checkWrite(res, "file", projectID+"/"+fileName)
}

func (s *Store) DeleteFile(ctx context.Context, projectID, fileName string) error {
	res := s.conn(ctx).
		Where("project_id = ? AND file_name = ?", projectID, fileName).
		Delete(&models.File{})
	return checkWrite(res, "file", projectID+"/"+fileName)
}

func (s *Store) GetDataBlob(ctx context.Context, workspaceID, projectID, sha1 string) (*models.DataBlob, error) {
	return first[models.DataBlob](
		s.conn(ctx).Where("workspace_id = ? AND project_id = ? AND sha1 = ?", workspaceID, projectID, sha1),
		"data blob", workspaceID+" "+projectID+" "+sha1,
	)
}

// PutDataBlob stores b unless an identical blob is already present.
// Blobs are content addressed, so an existing row never differs.
func (s *Store) PutDataBlob(ctx context.Context, b *models.DataBlob) error {
	if err := checkValid("data blob", b); err != nil {
		return err
	}
	err := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(b).Error
	return errors.Wrap(err, "put data blob")
}
