// Package computeresource implements the coordination protocol spoken by
// polling compute resources, and the owner-side management of their
// registrations, apps and nodes.
//
// A compute resource authenticates a poll by signing the fixed payload
// {"type": "computeResource.<operation>"} with its own key; its id is
// the hex public key, so no user token is involved.
package computeresource

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/models"
	"github.com/protocaas/protocaas/internal/permission"
	"github.com/protocaas/protocaas/internal/pubsub"
	"github.com/protocaas/protocaas/internal/signature"
	"github.com/protocaas/protocaas/internal/store"
	"github.com/protocaas/protocaas/pkg/log"
	"gorm.io/datatypes"
)

const (
	OpGetPendingJobs        = "computeResource.getPendingJobs"
	OpGetUnfinishedJobs     = "computeResource.getUnfinishedJobs"
	OpGetApps               = "computeResource.getApps"
	OpGetPubsubSubscription = "computeResource.getPubsubSubscription"
	OpSetSpec               = "computeResource.setSpec"
)

type Config struct {
	Store        *store.Store
	Evaluator    permission.Evaluator
	SubscribeKey string
	// ActiveWindow bounds how recently a node must have polled to be
	// reported as active.
	ActiveWindow time.Duration
	// CodeWindow bounds the age of a registration resource code.
	CodeWindow time.Duration
	Now        func() time.Time
}

type Service struct {
	store        *store.Store
	evaluator    permission.Evaluator
	subscribeKey string
	activeWindow time.Duration
	codeWindow   time.Duration
	now          func() time.Time
}

func NewService(cfg Config) *Service {
	s := &Service{
		store:        cfg.Store,
		evaluator:    cfg.Evaluator,
		subscribeKey: cfg.SubscribeKey,
		activeWindow: cfg.ActiveWindow,
		codeWindow:   cfg.CodeWindow,
		now:          cfg.Now,
	}
	if s.activeWindow <= 0 {
		s.activeWindow = 5 * time.Minute
	}
	if s.codeWindow <= 0 {
		s.codeWindow = 5 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// PollRequest is the envelope-free request of a compute resource.
type PollRequest struct {
	ComputeResourceID string `json:"computeResourceId"`
	Signature         string `json:"signature"`
	NodeID            string `json:"nodeId,omitempty"`
	NodeName          string `json:"nodeName,omitempty"`
}

// PollerJob is all a poller learns about a job. The private key is the
// capability its processor uses for every later call.
type PollerJob struct {
	JobID         string `json:"jobId"`
	JobPrivateKey string `json:"jobPrivateKey"`
	ProcessorName string `json:"processorName"`
}

// authenticate loads the compute resource and checks the request was
// signed by its key for op.
func (s *Service) authenticate(ctx context.Context, op string, req PollRequest) (*models.ComputeResource, error) {
	cr, err := s.store.GetComputeResource(ctx, req.ComputeResourceID)
	if err != nil {
		return nil, err
	}
	if err := signature.Check(map[string]any{"type": op}, cr.ComputeResourceID, req.Signature); err != nil {
		return nil, errors.Wrapf(err, "%s", op)
	}
	return cr, nil
}

func (s *Service) PendingJobs(ctx context.Context, req PollRequest) ([]PollerJob, error) {
	return s.poll(ctx, OpGetPendingJobs, req, []models.JobStatus{models.JobStatusPending})
}

func (s *Service) UnfinishedJobs(ctx context.Context, req PollRequest) ([]PollerJob, error) {
	return s.poll(ctx, OpGetUnfinishedJobs, req, models.UnfinishedJobStatuses)
}

func (s *Service) poll(ctx context.Context, op string, req PollRequest, statuses []models.JobStatus) ([]PollerJob, error) {
	cr, err := s.authenticate(ctx, op, req)
	if err != nil {
		return nil, err
	}
	jobs, err := s.store.ListJobs(ctx, store.JobFilter{ComputeResourceID: cr.ComputeResourceID, Statuses: statuses})
	if err != nil {
		return nil, err
	}
	if req.NodeID != "" {
		if err := s.store.TouchNode(ctx, cr.ComputeResourceID, req.NodeID, req.NodeName, models.Timestamp(s.now())); err != nil {
			return nil, err
		}
	}

	out := make([]PollerJob, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, PollerJob{JobID: j.JobID, JobPrivateKey: j.JobPrivateKey, ProcessorName: j.ProcessorName})
	}
	return out, nil
}

func (s *Service) Apps(ctx context.Context, req PollRequest) ([]models.ComputeResourceApp, error) {
	cr, err := s.authenticate(ctx, OpGetApps, req)
	if err != nil {
		return nil, err
	}
	if cr.Apps == nil {
		return []models.ComputeResourceApp{}, nil
	}
	return cr.Apps, nil
}

// Subscription returns the credentials for the compute resource's own
// notification channel.
func (s *Service) Subscription(ctx context.Context, req PollRequest) (pubsub.Subscription, error) {
	cr, err := s.authenticate(ctx, OpGetPubsubSubscription, req)
	if err != nil {
		return pubsub.Subscription{}, err
	}
	return pubsub.SubscriptionFor(s.subscribeKey, cr.ComputeResourceID), nil
}

// SetSpec replaces the compute resource's processor spec.
func (s *Service) SetSpec(ctx context.Context, req PollRequest, spec *models.ComputeResourceSpec) error {
	cr, err := s.authenticate(ctx, OpSetSpec, req)
	if err != nil {
		return err
	}
	if spec == nil {
		return errors.New("spec is required")
	}
	if err := spec.Validate(); err != nil {
		return errors.Wrap(err, "set spec")
	}
	log.Info("compute resource spec updated", "compute_resource_id", cr.ComputeResourceID, "apps", len(spec.Apps))
	return s.store.UpdateComputeResource(ctx, cr.ComputeResourceID, map[string]any{
		"spec": datatypes.NewJSONType(spec),
	})
}
