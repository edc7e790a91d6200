package computeresource

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/identity"
	"github.com/protocaas/protocaas/internal/models"
	"github.com/protocaas/protocaas/internal/permission"
	"github.com/protocaas/protocaas/internal/pubsub"
	"github.com/protocaas/protocaas/internal/signature"
	"github.com/protocaas/protocaas/internal/store"
	"github.com/protocaas/protocaas/pkg/log"
	"gorm.io/datatypes"
)

var ErrInvalidResourceCode = errors.New("invalid resource code")

// ResourceCode returns the proof of key possession expected by
// Register: "<unix-seconds>-<signature of {"timestamp": seconds}>".
func ResourceCode(key *signature.KeyPair, timestamp int64) (string, error) {
	sig, err := signature.Sign(map[string]any{"timestamp": timestamp}, key.PrivateKey)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(timestamp, 10) + "-" + sig, nil
}

func (s *Service) checkResourceCode(computeResourceID, code string) error {
	ts, sig, ok := strings.Cut(code, "-")
	if !ok {
		return errors.Wrap(ErrInvalidResourceCode, "malformed")
	}
	timestamp, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return errors.Wrap(ErrInvalidResourceCode, "malformed timestamp")
	}
	if math.Abs(float64(s.now().Unix()-timestamp)) > s.codeWindow.Seconds() {
		return errors.Wrap(ErrInvalidResourceCode, "expired")
	}
	if err := signature.Check(map[string]any{"timestamp": timestamp}, computeResourceID, sig); err != nil {
		return errors.Wrap(ErrInvalidResourceCode, err.Error())
	}
	return nil
}

// Register records the caller as owner of a compute resource whose key
// they hold. Re-registering an owned resource renames it.
func (s *Service) Register(ctx context.Context, p identity.Principal, computeResourceID, resourceCode, name string) error {
	if p.UserID == "" {
		return permission.Deny("register compute resources")
	}
	if err := s.checkResourceCode(computeResourceID, resourceCode); err != nil {
		return err
	}

	existing, err := s.store.GetComputeResource(ctx, computeResourceID)
	switch {
	case err == nil:
		if existing.OwnerID != p.UserID {
			return permission.Deny("register a compute resource owned by another user")
		}
		return s.store.UpdateComputeResource(ctx, computeResourceID, map[string]any{"name": name})
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	cr := &models.ComputeResource{
		ComputeResourceID: computeResourceID,
		OwnerID:           p.UserID,
		Name:              name,
		TimestampCreated:  models.Timestamp(s.now()),
		Apps:              datatypes.NewJSONSlice([]models.ComputeResourceApp{}),
	}
	if err := s.store.SaveComputeResource(ctx, cr); err != nil {
		return err
	}
	log.Info("compute resource registered", "compute_resource_id", computeResourceID, "owner_id", p.UserID)
	return nil
}

func (s *Service) Get(ctx context.Context, computeResourceID string) (*models.ComputeResource, error) {
	return s.store.GetComputeResource(ctx, computeResourceID)
}

// List returns the compute resources owned by the caller.
func (s *Service) List(ctx context.Context, p identity.Principal) ([]models.ComputeResource, error) {
	if p.UserID == "" {
		return nil, permission.Deny("list compute resources")
	}
	return s.store.ListComputeResources(ctx, p.UserID)
}

// owned loads a compute resource the caller manages.
func (s *Service) owned(ctx context.Context, p identity.Principal, computeResourceID, action string) (*models.ComputeResource, error) {
	cr, err := s.store.GetComputeResource(ctx, computeResourceID)
	if err != nil {
		return nil, err
	}
	if !permission.CanManageComputeResource(cr, p) {
		return nil, permission.Deny(action)
	}
	return cr, nil
}

func (s *Service) Delete(ctx context.Context, p identity.Principal, computeResourceID string) error {
	if _, err := s.owned(ctx, p, computeResourceID, "delete this compute resource"); err != nil {
		return err
	}
	return s.store.DeleteComputeResource(ctx, computeResourceID)
}

// SetApps replaces the app list. An app may name AWS Batch or Slurm
// options, not both.
func (s *Service) SetApps(ctx context.Context, p identity.Principal, computeResourceID string, apps []models.ComputeResourceApp) error {
	if _, err := s.owned(ctx, p, computeResourceID, "set the apps on this compute resource"); err != nil {
		return err
	}
	if apps == nil {
		apps = []models.ComputeResourceApp{}
	}
	for _, app := range apps {
		if err := app.Validate(); err != nil {
			return err
		}
	}
	return s.store.UpdateComputeResource(ctx, computeResourceID, map[string]any{
		"apps": datatypes.NewJSONSlice(apps),
	})
}

// ActiveNodes returns the nodes that polled within the active window.
func (s *Service) ActiveNodes(ctx context.Context, p identity.Principal, computeResourceID string) ([]models.ComputeResourceNode, error) {
	if _, err := s.owned(ctx, p, computeResourceID, "view nodes of this compute resource"); err != nil {
		return nil, err
	}
	since := models.Timestamp(s.now().Add(-s.activeWindow))
	return s.store.ListNodes(ctx, computeResourceID, since)
}

// UserSubscription lets a user listen on a compute resource's channel
// when they own it or can read a project served by it.
func (s *Service) UserSubscription(ctx context.Context, p identity.Principal, computeResourceID, projectID string) (pubsub.Subscription, error) {
	cr, err := s.store.GetComputeResource(ctx, computeResourceID)
	if err != nil {
		return pubsub.Subscription{}, err
	}
	if permission.CanManageComputeResource(cr, p) {
		return pubsub.SubscriptionFor(s.subscribeKey, cr.ComputeResourceID), nil
	}
	if projectID != "" {
		project, err := s.store.CachedProject(ctx, projectID)
		if err != nil {
			return pubsub.Subscription{}, err
		}
		ws, err := s.store.CachedWorkspace(ctx, project.WorkspaceID)
		if err != nil {
			return pubsub.Subscription{}, err
		}
		if s.evaluator.ComputeResourceID(ws) == cr.ComputeResourceID && s.evaluator.CanReadWorkspace(ws, p) {
			return pubsub.SubscriptionFor(s.subscribeKey, cr.ComputeResourceID), nil
		}
	}
	return pubsub.Subscription{}, permission.Deny("subscribe to this compute resource")
}
