package rpc

import (
	"context"

	"github.com/protocaas/protocaas/internal/computeresource"
	"github.com/protocaas/protocaas/internal/identity"
	"github.com/protocaas/protocaas/internal/models"
)

type setSpecRequest struct {
	computeresource.PollRequest
	Spec *models.ComputeResourceSpec `json:"spec"`
}

// computeResourceArms authenticate by the resource's signature over
// its own operation type.
func (d *Dispatcher) computeResourceArms() map[string]handler {
	return map[string]handler{
		computeresource.OpGetPendingJobs: arm(func(ctx context.Context, _ identity.Principal, req computeresource.PollRequest) (Response, error) {
			jobs, err := d.crs.PendingJobs(ctx, req)
			if err != nil {
				return nil, err
			}
			return Response{"jobs": jobs}, nil
		}),
		computeresource.OpGetUnfinishedJobs: arm(func(ctx context.Context, _ identity.Principal, req computeresource.PollRequest) (Response, error) {
			jobs, err := d.crs.UnfinishedJobs(ctx, req)
			if err != nil {
				return nil, err
			}
			return Response{"jobs": jobs}, nil
		}),
		computeresource.OpGetApps: arm(func(ctx context.Context, _ identity.Principal, req computeresource.PollRequest) (Response, error) {
			apps, err := d.crs.Apps(ctx, req)
			if err != nil {
				return nil, err
			}
			return Response{"apps": apps}, nil
		}),
		computeresource.OpGetPubsubSubscription: arm(func(ctx context.Context, _ identity.Principal, req computeresource.PollRequest) (Response, error) {
			sub, err := d.crs.Subscription(ctx, req)
			if err != nil {
				return nil, err
			}
			return Response{"subscription": sub}, nil
		}),
		computeresource.OpSetSpec: arm(func(ctx context.Context, _ identity.Principal, req setSpecRequest) (Response, error) {
			return nil, d.crs.SetSpec(ctx, req.PollRequest, req.Spec)
		}),
	}
}
