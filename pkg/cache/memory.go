package cache

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process store backed by go-cache.
type Memory struct {
	db *gocache.Cache
}

// NewMemory returns an empty store. Expired items are purged every minute.
func NewMemory() *Memory {
	return &Memory{db: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (m *Memory) Driver() string { return "memory" }

func (m *Memory) Get(_ context.Context, key string, dest any) bool {
	raw, found := m.db.Get(key)
	if !found {
		return observe(m.Driver(), false)
	}
	data, ok := raw.([]byte)
	if !ok || json.Unmarshal(data, dest) != nil {
		return observe(m.Driver(), false)
	}
	return observe(m.Driver(), true)
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.db.Set(key, data, ttl)
	return nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.db.Delete(k)
	}
	return nil
}
