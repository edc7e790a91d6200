// Package pubsub announces job events on per-compute-resource channels.
// Publishing is observational: callers use Notify, which logs and counts
// failures instead of returning them.
package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/metrics"
	"github.com/protocaas/protocaas/pkg/log"
)

type Type string

const (
	TypeJobStatusChanged Type = "jobStatusChanged"
	TypeNewPendingJob    Type = "newPendingJob"
)

// Message is the body published to a compute resource's channel.
type Message struct {
	Type        Type   `json:"type"`
	WorkspaceID string `json:"workspaceId"`
	ProjectID   string `json:"projectId"`
	JobID       string `json:"jobId"`
	Status      string `json:"status,omitempty"`
}

// Publisher sends a message on a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, msg Message) error
}

// Subscription is handed to a compute resource so it can listen on its
// own channel.
type Subscription struct {
	SubscribeKey string `json:"pubnubSubscribeKey"`
	Channel      string `json:"pubnubChannel"`
	User         string `json:"pubnubUser"`
}

func SubscriptionFor(subscribeKey, computeResourceID string) Subscription {
	return Subscription{
		SubscribeKey: subscribeKey,
		Channel:      computeResourceID,
		User:         computeResourceID,
	}
}

const publishTimeout = 5 * time.Second

// Notify publishes msg and swallows any failure.
func Notify(ctx context.Context, p Publisher, channel string, msg Message) {
	if p == nil || channel == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.Publish(ctx, channel, msg); err != nil {
		metrics.PublishFailuresTotal.Inc()
		log.Warn("publish failed",
			"channel", channel,
			"type", msg.Type,
			"job_id", msg.JobID,
			"error", err,
		)
	}
}

func encode(msg Message) ([]byte, error) {
	b, err := json.Marshal(msg)
	return b, errors.Wrap(err, "encode message")
}

// Noop discards every message.
type Noop struct{}

func (Noop) Publish(context.Context, string, Message) error { return nil }
