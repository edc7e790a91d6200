// Package rpc routes the single protocaas endpoint. A body is either a
// bare processor, compute resource or client request, recognized by the
// prefix of its type, or an envelope whose payload is an end-user
// request. Each operation is one arm in a table keyed by type.
package rpc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/computeresource"
	"github.com/protocaas/protocaas/internal/file"
	"github.com/protocaas/protocaas/internal/identity"
	"github.com/protocaas/protocaas/internal/job"
	"github.com/protocaas/protocaas/internal/metrics"
	"github.com/protocaas/protocaas/internal/workspace"
	"github.com/protocaas/protocaas/pkg/log"
)

// ErrInvalidRequest marks a body whose shape matches no known request.
var ErrInvalidRequest = errors.New("invalid request")

// Domain is the trust domain a request was routed to.
type Domain string

const (
	DomainProcessor       Domain = "processor"
	DomainComputeResource Domain = "computeResource"
	DomainClient          Domain = "client"
	DomainUser            Domain = "user"
)

// Response is a JSON object tagged with the request type.
type Response map[string]any

type handler func(ctx context.Context, p identity.Principal, raw json.RawMessage) (Response, error)

// arm decodes the raw request into T before calling fn. A body that
// does not decode is an invalid request rather than a failure.
func arm[T any](fn func(ctx context.Context, p identity.Principal, req T) (Response, error)) handler {
	return func(ctx context.Context, p identity.Principal, raw json.RawMessage) (Response, error) {
		var req T
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, errors.Wrap(ErrInvalidRequest, err.Error())
		}
		return fn(ctx, p, req)
	}
}

type Config struct {
	Resolver         *identity.Resolver
	Jobs             *job.Engine
	Workspaces       *workspace.Service
	Files            *file.Service
	ComputeResources *computeresource.Service
}

type Dispatcher struct {
	resolver *identity.Resolver
	jobs     *job.Engine
	ws       *workspace.Service
	files    *file.Service
	crs      *computeresource.Service
	arms     map[Domain]map[string]handler
}

func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		resolver: cfg.Resolver,
		jobs:     cfg.Jobs,
		ws:       cfg.Workspaces,
		files:    cfg.Files,
		crs:      cfg.ComputeResources,
	}
	d.arms = map[Domain]map[string]handler{
		DomainProcessor:       d.processorArms(),
		DomainComputeResource: d.computeResourceArms(),
		DomainClient:          d.clientArms(),
		DomainUser:            d.userArms(),
	}
	return d
}

type probe struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatch routes body and returns the tagged response. Errors wrapping
// ErrInvalidRequest mean the body was not understood; any other error
// is a failed request.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) (Response, error) {
	var head probe
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, errors.Wrap(ErrInvalidRequest, err.Error())
	}

	if domain, ok := bareDomain(head.Type); ok {
		return d.route(ctx, domain, head.Type, identity.Principal{}, body)
	}

	if len(head.Payload) == 0 {
		return nil, ErrInvalidRequest
	}
	var env identity.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(ErrInvalidRequest, err.Error())
	}
	var payload probe
	if err := json.Unmarshal(env.Payload, &payload); err != nil || payload.Type == "" {
		return nil, ErrInvalidRequest
	}

	p, err := d.resolver.Resolve(ctx, &env)
	if err != nil {
		typ := payload.Type
		if _, ok := d.arms[DomainUser][typ]; !ok {
			typ = "unknown"
		}
		observe(DomainUser, typ, nil, err)
		return nil, err
	}
	return d.route(ctx, DomainUser, payload.Type, p, env.Payload)
}

func bareDomain(typ string) (Domain, bool) {
	for _, domain := range []Domain{DomainProcessor, DomainComputeResource, DomainClient} {
		if strings.HasPrefix(typ, string(domain)+".") {
			return domain, true
		}
	}
	return "", false
}

func (d *Dispatcher) route(ctx context.Context, domain Domain, typ string, p identity.Principal, raw json.RawMessage) (Response, error) {
	h, ok := d.arms[domain][typ]
	if !ok {
		err := errors.Errorf("unexpected %s request type: %s", domain, typ)
		observe(domain, "unknown", nil, err)
		return nil, err
	}

	resp, err := h(ctx, p, raw)
	observe(domain, typ, resp, err)
	if err != nil {
		if !errors.Is(err, ErrInvalidRequest) {
			log.Warn("request failed", "domain", domain, "type", typ, "error", err)
		}
		return nil, err
	}
	if resp == nil {
		resp = Response{}
	}
	resp["type"] = typ
	return resp, nil
}

// observe counts one request. A response carrying success false is a
// soft rejection and counts as rejected rather than ok.
func observe(domain Domain, typ string, resp Response, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrInvalidRequest):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
	case resp["success"] == false:
		outcome = "rejected"
	}
	metrics.RequestsTotal.WithLabelValues(string(domain), typ, outcome).Inc()
}
