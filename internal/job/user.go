package job

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/file"
	"github.com/protocaas/protocaas/internal/identity"
	"github.com/protocaas/protocaas/internal/models"
	"github.com/protocaas/protocaas/internal/permission"
	"github.com/protocaas/protocaas/internal/pubsub"
	"github.com/protocaas/protocaas/internal/store"
	"github.com/protocaas/protocaas/pkg/log"
	"github.com/protocaas/protocaas/pkg/randomid"
	"gorm.io/datatypes"
)

var (
	ErrNotLoggedIn         = errors.New("user must be logged in to create jobs")
	ErrNoComputeResource   = errors.New("workspace does not have a compute resource ID, and no default is configured")
	ErrMissingJobFilter    = errors.New("no computeResourceId or projectId provided")
	ErrUnsupportedProperty = errors.New("unsupported job property")
)

type NamedFile struct {
	Name     string `json:"name"`
	FileName string `json:"fileName"`
}

type CreateRequest struct {
	WorkspaceID     string                     `json:"workspaceId"`
	ProjectID       string                     `json:"projectId"`
	BatchID         string                     `json:"batchId,omitempty"`
	ProcessorName   string                     `json:"processorName"`
	InputFiles      []NamedFile                `json:"inputFiles"`
	InputParameters []models.JobInputParameter `json:"inputParameters"`
	OutputFiles     []NamedFile                `json:"outputFiles"`
	ProcessorSpec   map[string]any             `json:"processorSpec,omitempty"`
}

// Create inserts a pending job and returns its id. Any file, and any
// other job, already claiming one of the new job's output names is
// deleted first so a name never has two producers.
func (e *Engine) Create(ctx context.Context, p identity.Principal, req CreateRequest) (string, error) {
	if p.UserID == "" {
		return "", ErrNotLoggedIn
	}
	ws, err := e.store.GetWorkspace(ctx, req.WorkspaceID)
	if err != nil {
		return "", err
	}
	if !permission.CanCreateJob(ws, p) {
		return "", permission.Deny("create jobs")
	}
	computeResourceID := e.evaluator.ComputeResourceID(ws)
	if computeResourceID == "" {
		return "", ErrNoComputeResource
	}
	project, err := e.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return "", err
	}
	if project.WorkspaceID != req.WorkspaceID {
		return "", file.ErrIncorrectWorkspace
	}

	inputs := make([]models.JobInputFile, 0, len(req.InputFiles))
	inputIDs := make([]string, 0, len(req.InputFiles))
	for _, in := range req.InputFiles {
		f, err := e.store.FindFile(ctx, req.ProjectID, in.FileName)
		if err != nil {
			return "", err
		}
		if f == nil {
			return "", errors.Errorf("project input file does not exist: %s", in.FileName)
		}
		inputs = append(inputs, models.JobInputFile{Name: in.Name, FileID: f.FileID, FileName: f.FileName})
		inputIDs = append(inputIDs, f.FileID)
	}

	jobID := randomid.New(jobIDLength)
	outputs := make([]models.JobOutputFile, 0, len(req.OutputFiles))
	for _, out := range req.OutputFiles {
		outputs = append(outputs, models.JobOutputFile{
			Name:     out.Name,
			FileName: strings.ReplaceAll(out.FileName, JobIDToken, jobID),
		})
	}
	params := req.InputParameters
	if params == nil {
		params = []models.JobInputParameter{}
	}

	j := &models.Job{
		JobID:             jobID,
		JobPrivateKey:     randomid.New(jobPrivateKeyLength),
		WorkspaceID:       req.WorkspaceID,
		ProjectID:         req.ProjectID,
		UserID:            p.UserID,
		ProcessorName:     req.ProcessorName,
		BatchID:           req.BatchID,
		InputFiles:        datatypes.NewJSONSlice(inputs),
		InputFileIDs:      datatypes.NewJSONSlice(inputIDs),
		InputParameters:   datatypes.NewJSONSlice(params),
		OutputFiles:       datatypes.NewJSONSlice(outputs),
		ProcessorSpec:     datatypes.JSONMap(req.ProcessorSpec),
		ComputeResourceID: computeResourceID,
		Status:            models.JobStatusPending,
		TimestampCreated:  e.timestamp(),
	}
	if err := j.Validate(); err != nil {
		return "", errors.Wrap(err, "create job")
	}

	err = e.store.Transaction(ctx, func(tx *store.Store) error {
		for _, out := range outputs {
			if err := file.Remove(ctx, tx, req.ProjectID, out.FileName, ""); err != nil {
				return err
			}
		}
		return tx.CreateJob(ctx, j)
	})
	if err != nil {
		return "", err
	}

	log.Info("job created",
		"job_id", jobID,
		"project_id", req.ProjectID,
		"compute_resource_id", computeResourceID,
		"processor", req.ProcessorName,
	)
	pubsub.Notify(ctx, e.publisher, computeResourceID, pubsub.Message{
		Type:        pubsub.TypeNewPendingJob,
		WorkspaceID: req.WorkspaceID,
		ProjectID:   req.ProjectID,
		JobID:       jobID,
	})
	return jobID, nil
}

func (e *Engine) Delete(ctx context.Context, p identity.Principal, workspaceID, jobID string) error {
	ws, err := e.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !permission.CanDeleteJob(ws, p) {
		return permission.Deny("delete jobs")
	}
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if j.WorkspaceID != workspaceID {
		return file.ErrIncorrectWorkspace
	}
	if err := e.store.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	// completed outputs are still referenced by their project files
	if j.Status != models.JobStatusCompleted {
		e.outputs.RemoveObjects(ctx, jobID)
	}
	return nil
}

// Get returns the job with its private key blanked.
func (e *Engine) Get(ctx context.Context, p identity.Principal, jobID string) (*models.Job, error) {
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	ws, err := e.store.CachedWorkspace(ctx, j.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if !e.evaluator.CanReadWorkspace(ws, p) && p.ClientID != j.ComputeResourceID {
		return nil, permission.Deny("read this workspace")
	}
	redacted := j.Redacted()
	return &redacted, nil
}

// ListRequest filters jobs by project or compute resource. When the
// caller is the compute resource itself and names a node, the node's
// liveness record is refreshed.
type ListRequest struct {
	ProjectID         string           `json:"projectId,omitempty"`
	ComputeResourceID string           `json:"computeResourceId,omitempty"`
	Status            models.JobStatus `json:"status,omitempty"`
	NodeID            string           `json:"nodeId,omitempty"`
	NodeName          string           `json:"nodeName,omitempty"`
}

func (e *Engine) List(ctx context.Context, p identity.Principal, req ListRequest) ([]models.Job, error) {
	if req.ProjectID == "" && req.ComputeResourceID == "" {
		return nil, ErrMissingJobFilter
	}
	if err := e.canList(ctx, p, req); err != nil {
		return nil, err
	}

	filter := store.JobFilter{ProjectID: req.ProjectID, ComputeResourceID: req.ComputeResourceID}
	if req.Status != "" {
		filter.Statuses = []models.JobStatus{req.Status}
	}
	jobs, err := e.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, err
	}

	if p.ClientID != "" && p.ClientID == req.ComputeResourceID && req.NodeID != "" && req.NodeName != "" {
		if err := e.store.TouchNode(ctx, req.ComputeResourceID, req.NodeID, req.NodeName, e.timestamp()); err != nil {
			return nil, err
		}
	}

	for i := range jobs {
		jobs[i] = jobs[i].Redacted()
	}
	return jobs, nil
}

func (e *Engine) canList(ctx context.Context, p identity.Principal, req ListRequest) error {
	if req.ProjectID != "" {
		project, err := e.store.CachedProject(ctx, req.ProjectID)
		if err != nil {
			return err
		}
		ws, err := e.store.CachedWorkspace(ctx, project.WorkspaceID)
		if err != nil {
			return err
		}
		if !e.evaluator.CanReadWorkspace(ws, p) {
			return permission.Deny("read this workspace")
		}
		return nil
	}
	if p.ClientID != "" && p.ClientID == req.ComputeResourceID {
		return nil
	}
	cr, err := e.store.GetComputeResource(ctx, req.ComputeResourceID)
	if err != nil {
		return err
	}
	if !permission.CanManageComputeResource(cr, p) {
		return permission.Deny("list jobs of this compute resource")
	}
	return nil
}

// SetProperty changes a user-editable job property. Only batchId is
// editable; status and outputs move through the lifecycle alone.
func (e *Engine) SetProperty(ctx context.Context, p identity.Principal, workspaceID, jobID, property string, value any) error {
	ws, err := e.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !permission.CanSetJobProperty(ws, p) {
		return permission.Deny("set job properties")
	}
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if j.WorkspaceID != workspaceID {
		return file.ErrIncorrectWorkspace
	}

	switch property {
	case "batchId":
		batchID, ok := value.(string)
		if !ok && value != nil {
			return errors.Errorf("batchId must be a string, got %T", value)
		}
		return e.store.UpdateJob(ctx, jobID, map[string]any{"batch_id": batchID})
	default:
		return errors.Wrap(ErrUnsupportedProperty, property)
	}
}
