package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a small JSON read-through layer over redis. A nil *Cache is a
// valid always-miss cache, so callers never branch on whether redis is
// configured.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr string, password string, db int, ttl time.Duration) *Cache {
	if addr == "" {
		return nil
	}

	return &Cache{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil {
		return false
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (c *Cache) Set(ctx context.Context, key string, val any) {
	if c == nil {
		return
	}

	raw, err := json.Marshal(val)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, key, raw, c.ttl)
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	c.rdb.Del(ctx, keys...)
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
