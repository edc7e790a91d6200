package models

import (
	"fmt"
	"strings"

	"gorm.io/datatypes"
)

// ContentKind is the tag prefix of File.Content.
type ContentKind string

const (
	ContentURL  ContentKind = "url"
	ContentBlob ContentKind = "blob"
	ContentData ContentKind = "data"
)

// ParseContent splits a tagged content string into its kind and body.
func ParseContent(content string) (ContentKind, string, error) {
	kind, body, ok := strings.Cut(content, ":")
	if !ok {
		return "", "", fmt.Errorf("content %q has no tag", truncate(content, 32))
	}
	switch k := ContentKind(kind); k {
	case ContentURL, ContentBlob, ContentData:
		return k, body, nil
	default:
		return "", "", fmt.Errorf("content tag %q is not one of url, blob, data", kind)
	}
}

// File is keyed by (ProjectID, FileName); FileID is a synthetic id.
type File struct {
	FileID           string            `gorm:"primaryKey" json:"fileId"`
	ProjectID        string            `gorm:"uniqueIndex:idx_files_project_name;not null" json:"projectId"`
	FileName         string            `gorm:"uniqueIndex:idx_files_project_name;not null" json:"fileName"`
	WorkspaceID      string            `gorm:"index;not null" json:"workspaceId"`
	UserID           string            `json:"userId"`
	Size             int64             `json:"size"`
	TimestampCreated float64           `json:"timestampCreated"`
	Content          string            `json:"content"`
	Metadata         datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	JobID            string            `gorm:"index" json:"jobId,omitempty"`
}

func (f *File) Validate() error {
	if err := firstError(
		required("fileId", f.FileID),
		required("projectId", f.ProjectID),
		required("workspaceId", f.WorkspaceID),
		required("fileName", f.FileName),
	); err != nil {
		return err
	}
	if _, _, err := ParseContent(f.Content); err != nil {
		return err
	}
	return nil
}

type DataBlob struct {
	WorkspaceID string `gorm:"primaryKey" json:"workspaceId"`
	ProjectID   string `gorm:"primaryKey;index" json:"projectId"`
	SHA1        string `gorm:"primaryKey;column:sha1" json:"sha1"`
	Size        int64  `json:"size"`
	Content     string `json:"content"`
}

func (b *DataBlob) Validate() error {
	if err := firstError(
		required("workspaceId", b.WorkspaceID),
		required("projectId", b.ProjectID),
		required("sha1", b.SHA1),
	); err != nil {
		return err
	}
	if int64(len(b.Content)) != b.Size {
		return fmt.Errorf("blob %s size %d does not match content length %d", b.SHA1, b.Size, len(b.Content))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
