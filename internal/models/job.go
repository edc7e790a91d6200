package models

import (
	"fmt"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusQueued    JobStatus = "queued"
	JobStatusStarting  JobStatus = "starting"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// UnfinishedJobStatuses is the in-flight set reported to pollers.
var UnfinishedJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusQueued,
	JobStatusStarting,
	JobStatusRunning,
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusQueued, JobStatusStarting,
		JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type JobInputFile struct {
	Name     string `json:"name"`
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
}

type JobInputParameter struct {
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
}

type JobOutputFile struct {
	Name     string `json:"name"`
	FileName string `json:"fileName"`
	FileID   string `json:"fileId,omitempty"`
}

type Job struct {
	JobID                   string                                 `gorm:"primaryKey" json:"jobId"`
	JobPrivateKey           string                                 `gorm:"not null" json:"jobPrivateKey"`
	WorkspaceID             string                                 `gorm:"index;not null" json:"workspaceId"`
	ProjectID               string                                 `gorm:"index;not null" json:"projectId"`
	UserID                  string                                 `json:"userId"`
	ProcessorName           string                                 `json:"processorName"`
	BatchID                 string                                 `gorm:"index" json:"batchId,omitempty"`
	InputFiles              datatypes.JSONSlice[JobInputFile]      `gorm:"type:json" json:"inputFiles"`
	InputFileIDs            datatypes.JSONSlice[string]            `gorm:"type:json" json:"inputFileIds"`
	InputParameters         datatypes.JSONSlice[JobInputParameter] `gorm:"type:json" json:"inputParameters"`
	OutputFiles             datatypes.JSONSlice[JobOutputFile]     `gorm:"type:json" json:"outputFiles"`
	OutputFileIDs           datatypes.JSONSlice[string]            `gorm:"type:json" json:"outputFileIds,omitempty"`
	ProcessorSpec           datatypes.JSONMap                      `gorm:"type:json" json:"processorSpec,omitempty"`
	ComputeResourceID       string                                 `gorm:"index;not null" json:"computeResourceId"`
	Status                  JobStatus                              `gorm:"type:text;index;not null" json:"status"`
	Error                   string                                 `json:"error,omitempty"`
	ProcessVersion          string                                 `json:"processVersion,omitempty"`
	ComputeResourceNodeID   string                                 `json:"computeResourceNodeId,omitempty"`
	ComputeResourceNodeName string                                 `json:"computeResourceNodeName,omitempty"`
	ConsoleOutput           string                                 `json:"consoleOutput,omitempty"`
	TimestampCreated        float64                                `json:"timestampCreated"`
	TimestampQueued         *float64                               `json:"timestampQueued,omitempty"`
	TimestampStarting       *float64                               `json:"timestampStarting,omitempty"`
	TimestampStarted        *float64                               `json:"timestampStarted,omitempty"`
	TimestampFinished       *float64                               `json:"timestampFinished,omitempty"`
}

func (j *Job) Validate() error {
	if err := firstError(
		required("jobId", j.JobID),
		required("jobPrivateKey", j.JobPrivateKey),
		required("workspaceId", j.WorkspaceID),
		required("projectId", j.ProjectID),
		required("processorName", j.ProcessorName),
		required("computeResourceId", j.ComputeResourceID),
	); err != nil {
		return err
	}
	if !j.Status.Valid() {
		return fmt.Errorf("status %q is invalid", j.Status)
	}
	for i, in := range j.InputFiles {
		if in.Name == "" || in.FileName == "" {
			return fmt.Errorf("inputFiles[%d] requires name and fileName", i)
		}
	}
	for i, p := range j.InputParameters {
		if p.Name == "" {
			return fmt.Errorf("inputParameters[%d].name is required", i)
		}
	}
	for i, out := range j.OutputFiles {
		if out.Name == "" || out.FileName == "" {
			return fmt.Errorf("outputFiles[%d] requires name and fileName", i)
		}
	}
	return nil
}

// Redacted returns a copy of j with the capability secret blanked, for
// any response to a caller that does not own the job.
func (j Job) Redacted() Job {
	j.JobPrivateKey = ""
	return j
}

// DeclaresInput reports whether fileName is one of the job's inputs.
func (j *Job) DeclaresInput(fileName string) bool {
	for _, in := range j.InputFiles {
		if in.FileName == fileName {
			return true
		}
	}
	return false
}

// DeclaresOutput reports whether fileName is one of the job's outputs.
func (j *Job) DeclaresOutput(fileName string) bool {
	for _, out := range j.OutputFiles {
		if out.FileName == fileName {
			return true
		}
	}
	return false
}
