package pubsub

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis publishes on redis channels named after the compute resource.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Publish(ctx context.Context, channel string, msg Message) error {
	body, err := encode(msg)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, channel, body).Err(); err != nil {
		return errors.Wrapf(err, "publish to %s", channel)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
