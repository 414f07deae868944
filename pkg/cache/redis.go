package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a shared store backed by go-redis.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// ConnectRedis initialises the client and verifies the connection with a ping.
func ConnectRedis(ctx context.Context, addr, password string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return NewRedis(rdb), nil
}

// NewRedis wraps an existing client. Keys are namespaced with "drivegate:".
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, prefix: "drivegate:"}
}

func (r *Redis) Driver() string { return "redis" }

// Close releases the underlying client.
func (r *Redis) Close() error { return r.rdb.Close() }

func (r *Redis) Get(ctx context.Context, key string, dest any) bool {
	val, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		return observe(r.Driver(), false)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return observe(r.Driver(), false)
	}
	return observe(r.Driver(), true)
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return r.rdb.Set(ctx, r.prefix+key, data, ttl).Err()
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	return r.rdb.Del(ctx, full...).Err()
}
