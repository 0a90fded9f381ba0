// Package cache owns the shared Redis connection used by the auth stores
// and the audit trail.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gracegoods/server/src/config"
)

// Redis wraps the go-redis client with connection lifecycle helpers.
type Redis struct {
	client *redis.Client
}

func NewRedis(cfg *config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Redis{client: client}, nil
}

// Ping reports whether the store is reachable, for health checks.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Client returns the underlying Redis client for direct access
func (r *Redis) Client() *redis.Client {
	return r.client
}
