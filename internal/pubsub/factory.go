package pubsub

import (
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	BackendRedis = "redis"
	BackendBus   = "bus"
	BackendNone  = "none"
)

type Config struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
}

// New builds the Publisher selected by cfg.Backend.
func New(cfg Config) (Publisher, error) {
	switch cfg.Backend {
	case BackendRedis:
		return NewRedis(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})), nil
	case BackendBus, "":
		return NewBus(), nil
	case BackendNone:
		return Noop{}, nil
	default:
		return nil, errors.Errorf("unknown pubsub backend %q", cfg.Backend)
	}
}
