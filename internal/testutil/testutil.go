package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/protocaas/protocaas/internal/models"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB returns an in-memory sqlite DB with migrations applied.
func OpenTestDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(models.All...); err != nil {
		tb.Fatalf("migrate: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	tb.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// Workspace returns a valid workspace owned by ownerID.
func Workspace(id, ownerID string, users ...models.WorkspaceUser) *models.Workspace {
	now := models.Now()
	return &models.Workspace{
		WorkspaceID:       id,
		OwnerID:           ownerID,
		Name:              "workspace " + id,
		Users:             datatypes.NewJSONSlice(users),
		TimestampCreated:  now,
		TimestampModified: now,
	}
}

func Project(id, workspaceID string) *models.Project {
	now := models.Now()
	return &models.Project{
		ProjectID:         id,
		WorkspaceID:       workspaceID,
		Name:              "project " + id,
		TimestampCreated:  now,
		TimestampModified: now,
	}
}

// File returns a url: file in the given project.
func File(workspaceID, projectID, fileName, url string) *models.File {
	return &models.File{
		FileID:           uuid.NewString(),
		WorkspaceID:      workspaceID,
		ProjectID:        projectID,
		FileName:         fileName,
		Content:          "url:" + url,
		Metadata:         datatypes.JSONMap{},
		TimestampCreated: models.Now(),
	}
}

// Job returns a pending job declaring the given outputs by file name.
func Job(id, workspaceID, projectID, computeResourceID string, outputs ...string) *models.Job {
	outs := make([]models.JobOutputFile, 0, len(outputs))
	for i, name := range outputs {
		outs = append(outs, models.JobOutputFile{Name: "output" + string(rune('a'+i)), FileName: name})
	}
	return &models.Job{
		JobID:             id,
		JobPrivateKey:     "key-" + id,
		WorkspaceID:       workspaceID,
		ProjectID:         projectID,
		UserID:            "github|owner",
		ProcessorName:     "processor",
		ComputeResourceID: computeResourceID,
		Status:            models.JobStatusPending,
		InputFiles:        datatypes.NewJSONSlice([]models.JobInputFile{}),
		InputFileIDs:      datatypes.NewJSONSlice([]string{}),
		InputParameters:   datatypes.NewJSONSlice([]models.JobInputParameter{}),
		OutputFiles:       datatypes.NewJSONSlice(outs),
		TimestampCreated:  models.Now(),
	}
}
