package models

type Project struct {
	ProjectID         string  `gorm:"primaryKey" json:"projectId"`
	WorkspaceID       string  `gorm:"index;not null" json:"workspaceId"`
	Name              string  `gorm:"not null" json:"name"`
	Description       string  `json:"description"`
	TimestampCreated  float64 `json:"timestampCreated"`
	TimestampModified float64 `json:"timestampModified"`
}

func (p *Project) Validate() error {
	return firstError(
		required("projectId", p.ProjectID),
		required("workspaceId", p.WorkspaceID),
	)
}
