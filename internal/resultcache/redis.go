package resultcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/specsql/internal/config"
	"github.com/roach88/specsql/internal/runner"
)

// Redis is a Cache backed by Redis string values with a TTL.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedis wraps an existing client.
func NewRedis(client redis.Cmdable, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Dial connects to the server in cfg and pings it.
func Dial(ctx context.Context, cfg config.CacheConfig) (*Redis, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return NewRedis(client, cfg.Prefix, cfg.TTL), client, nil
}

func (r *Redis) Get(ctx context.Context, key string) (*runner.Result, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	res, err := decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("decoding cached result: %w", err)
	}
	return res, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, res *runner.Result) error {
	data, err := encode(res)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
