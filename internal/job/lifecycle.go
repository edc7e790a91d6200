package job

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/file"
	"github.com/protocaas/protocaas/internal/metrics"
	"github.com/protocaas/protocaas/internal/models"
	"github.com/protocaas/protocaas/internal/pubsub"
	"github.com/protocaas/protocaas/internal/store"
	"github.com/protocaas/protocaas/pkg/log"
	"gorm.io/datatypes"
)

// StatusResult is the outcome of a status change. A rejected change is
// reported here, never as an error, so pollers can log and continue.
type StatusResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func rejected(format string, args ...any) StatusResult {
	return StatusResult{Error: fmt.Sprintf(format, args...)}
}

// StatusRequest is a processor's status report. Error is only accepted
// with StatusFailed; the node fields are recorded when present.
type StatusRequest struct {
	JobID                   string           `json:"jobId"`
	JobPrivateKey           string           `json:"jobPrivateKey"`
	Status                  models.JobStatus `json:"status"`
	Error                   string           `json:"error,omitempty"`
	ProcessVersion          string           `json:"processVersion,omitempty"`
	ComputeResourceNodeID   string           `json:"computeResourceNodeId,omitempty"`
	ComputeResourceNodeName string           `json:"computeResourceNodeName,omitempty"`
}

// sources lists the statuses each processor-settable status may be
// entered from.
var sources = map[models.JobStatus][]models.JobStatus{
	models.JobStatusStarting:  {models.JobStatusPending},
	models.JobStatusRunning:   {models.JobStatusStarting},
	models.JobStatusCompleted: {models.JobStatusRunning},
	models.JobStatusFailed:    {models.JobStatusRunning, models.JobStatusStarting, models.JobStatusPending},
}

// stamps is the timestamp column set on entering each status.
var stamps = map[models.JobStatus]string{
	models.JobStatusQueued:    "timestamp_queued",
	models.JobStatusStarting:  "timestamp_starting",
	models.JobStatusRunning:   "timestamp_started",
	models.JobStatusCompleted: "timestamp_finished",
	models.JobStatusFailed:    "timestamp_finished",
}

// Transition checks moving from one status to another, returning the
// rejection message or "" when the move is legal.
func Transition(from, to models.JobStatus, errMsg string) string {
	allowed, ok := sources[to]
	if !ok {
		return fmt.Sprintf("Cannot set job status to %s when status is %s", to, from)
	}
	legal := false
	for _, s := range allowed {
		if s == from {
			legal = true
			break
		}
	}
	if !legal {
		return fmt.Sprintf("Cannot set job status to %s when status is %s", to, from)
	}
	if errMsg != "" && to != models.JobStatusFailed {
		return fmt.Sprintf("Cannot set job error when status is %s", to)
	}
	return ""
}

// SetStatus applies a processor's status report. The write is a
// compare-and-swap on the status the legality check saw, so of two
// racing reports at most one is applied. A report that loses the swap
// is checked again against the winning status and retried once if it
// is still legal. Completion first creates a File for every declared
// output in the same transaction as the swap.
func (e *Engine) SetStatus(ctx context.Context, req StatusRequest) (StatusResult, error) {
	j, err := e.authorized(ctx, req.JobID, req.JobPrivateKey)
	if err != nil {
		return StatusResult{}, err
	}
	return e.setStatus(ctx, j, req)
}

// setStatus applies req against the snapshot j.
func (e *Engine) setStatus(ctx context.Context, j *models.Job, req StatusRequest) (StatusResult, error) {
	for attempt := 0; ; attempt++ {
		res, err := e.apply(ctx, j, req)
		if !errors.Is(err, store.ErrConflict) {
			return res, err
		}
		metrics.JobTransitionConflictsTotal.Inc()

		current, err := e.store.GetJob(ctx, j.JobID)
		if err != nil {
			return StatusResult{}, err
		}
		if attempt > 0 {
			return e.reject(current, req.Status,
				fmt.Sprintf("Cannot set job status to %s when status is %s", req.Status, current.Status)), nil
		}
		j = current
	}
}

// apply performs one check-and-swap attempt. A lost swap is returned as
// store.ErrConflict.
func (e *Engine) apply(ctx context.Context, j *models.Job, req StatusRequest) (StatusResult, error) {
	from := j.Status
	if msg := Transition(from, req.Status, req.Error); msg != "" {
		return e.reject(j, req.Status, msg), nil
	}

	updates := map[string]any{
		"status":           req.Status,
		stamps[req.Status]: e.timestamp(),
	}
	if req.Error != "" {
		updates["error"] = req.Error
	}
	if req.ProcessVersion != "" {
		updates["process_version"] = req.ProcessVersion
	}
	if req.ComputeResourceNodeID != "" {
		updates["compute_resource_node_id"] = req.ComputeResourceNodeID
	}
	if req.ComputeResourceNodeName != "" {
		updates["compute_resource_node_name"] = req.ComputeResourceNodeName
	}

	var err error
	if req.Status == models.JobStatusCompleted {
		err = e.complete(ctx, j, updates)
	} else {
		err = e.store.TransitionJob(ctx, j.JobID, from, updates)
	}
	if err != nil {
		return StatusResult{}, err
	}

	metrics.JobTransitionsTotal.WithLabelValues(string(from), string(req.Status)).Inc()
	log.Info("job status changed",
		"job_id", j.JobID,
		"from", from,
		"to", req.Status,
	)
	pubsub.Notify(ctx, e.publisher, j.ComputeResourceID, pubsub.Message{
		Type:        pubsub.TypeJobStatusChanged,
		WorkspaceID: j.WorkspaceID,
		ProjectID:   j.ProjectID,
		JobID:       j.JobID,
		Status:      string(req.Status),
	})
	return StatusResult{Success: true}, nil
}

func (e *Engine) reject(j *models.Job, to models.JobStatus, msg string) StatusResult {
	metrics.JobTransitionRejectionsTotal.WithLabelValues(string(to)).Inc()
	log.Info("job status change rejected", "job_id", j.JobID, "reason", msg)
	return rejected("%s", msg)
}

// complete materializes the job's outputs and flips it to completed in
// one transaction. Sizes are probed first, outside the transaction; any
// failure leaves the job running with no output files created.
func (e *Engine) complete(ctx context.Context, j *models.Job, updates map[string]any) error {
	type output struct {
		url  string
		size int64
	}
	probed := make([]output, len(j.OutputFiles))
	for i, out := range j.OutputFiles {
		url, err := e.outputs.URL(j.JobID, out.Name)
		if err != nil {
			return err
		}
		if e.prober == nil {
			return errors.New("no size prober configured")
		}
		size, err := e.prober.Size(ctx, url)
		if err != nil {
			return errors.Wrapf(err, "materialize output %s of job %s", out.Name, j.JobID)
		}
		probed[i] = output{url: url, size: size}
	}

	return e.store.Transaction(ctx, func(tx *store.Store) error {
		outputFiles := make([]models.JobOutputFile, len(j.OutputFiles))
		ids := make([]string, len(j.OutputFiles))
		for i, out := range j.OutputFiles {
			f := &models.File{
				FileID:           uuid.NewString(),
				ProjectID:        j.ProjectID,
				WorkspaceID:      j.WorkspaceID,
				FileName:         out.FileName,
				UserID:           j.UserID,
				Size:             probed[i].size,
				TimestampCreated: e.timestamp(),
				Content:          string(models.ContentURL) + ":" + probed[i].url,
				Metadata:         datatypes.JSONMap{},
				JobID:            j.JobID,
			}
			if err := file.Replace(ctx, tx, f, j.JobID); err != nil {
				return errors.Wrapf(err, "materialize output %s of job %s", out.Name, j.JobID)
			}
			outputFiles[i] = models.JobOutputFile{Name: out.Name, FileName: out.FileName, FileID: f.FileID}
			ids[i] = f.FileID
		}

		updates["output_files"] = datatypes.NewJSONSlice(outputFiles)
		updates["output_file_ids"] = datatypes.NewJSONSlice(ids)
		return tx.TransitionJob(ctx, j.JobID, models.JobStatusRunning, updates)
	})
}
