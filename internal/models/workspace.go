package models

import (
	"fmt"

	"gorm.io/datatypes"
)

// Role is a workspace access level.
type Role string

const (
	RoleNone   Role = "none"
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Assignable reports whether r may appear in a workspace users list.
func (r Role) Assignable() bool {
	switch r {
	case RoleViewer, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

type WorkspaceUser struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

type Workspace struct {
	WorkspaceID       string                             `gorm:"primaryKey" json:"workspaceId"`
	OwnerID           string                             `gorm:"index;not null" json:"ownerId"`
	Name              string                             `gorm:"not null" json:"name"`
	Description       string                             `json:"description"`
	Users             datatypes.JSONSlice[WorkspaceUser] `gorm:"type:json" json:"users"`
	PubliclyReadable  bool                               `json:"publiclyReadable"`
	Listed            bool                               `json:"listed"`
	ComputeResourceID string                             `json:"computeResourceId,omitempty"`
	TimestampCreated  float64                            `json:"timestampCreated"`
	TimestampModified float64                            `json:"timestampModified"`
}

func (w *Workspace) Validate() error {
	if err := firstError(
		required("workspaceId", w.WorkspaceID),
		required("ownerId", w.OwnerID),
	); err != nil {
		return err
	}
	for i, u := range w.Users {
		if u.UserID == "" {
			return fmt.Errorf("users[%d].userId is required", i)
		}
		if !u.Role.Assignable() {
			return fmt.Errorf("users[%d].role %q is invalid", i, u.Role)
		}
	}
	return nil
}
