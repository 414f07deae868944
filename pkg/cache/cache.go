// Package cache is a small key/value store with TTLs, used to cache
// normalized quota answers per session.
//
// Two drivers are available:
//   - "memory": in-process, backed by github.com/patrickmn/go-cache
//   - "redis": shared, backed by github.com/redis/go-redis
//
// Values are stored as JSON in both drivers so they behave the same:
//
//	store, err := cache.New(ctx, config.CacheDriver())
//	_ = store.Set(ctx, "quota:"+key, info, time.Minute)
//	var info QuotaInfo
//	if store.Get(ctx, "quota:"+key, &info) { ... }
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/shashiranjanraj/drivegate/config"
	"github.com/shashiranjanraj/drivegate/pkg/metrics"
)

// Store is implemented by every cache driver.
type Store interface {
	// Get unmarshals the value at key into dest and reports a hit.
	Get(ctx context.Context, key string, dest any) bool

	// Set stores value under key for ttl. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Driver names the backing driver ("memory" or "redis").
	Driver() string
}

// New builds the named driver. The redis driver is pinged before use.
func New(ctx context.Context, driver string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return ConnectRedis(ctx, config.RedisAddr(), config.RedisPassword())
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", driver)
	}
}

func observe(driver string, hit bool) bool {
	if hit {
		metrics.CacheHits.WithLabelValues(driver).Inc()
	} else {
		metrics.CacheMisses.WithLabelValues(driver).Inc()
	}
	return hit
}
