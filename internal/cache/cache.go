// Package cache provides the TTL cache used for expensive read models such as
// the admin dashboard stats. Values are stored JSON-encoded so the in-process
// and Redis backends behave the same.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is a byte-oriented TTL cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process Cache.
type Memory struct {
	c *gocache.Cache
}

// NewMemory creates an in-process cache that sweeps expired entries every cleanup interval.
func NewMemory(cleanup time.Duration) *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, cleanup)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return v.([]byte), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.c.Set(key, value, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis parses a redis:// URL and verifies the connection.
func NewRedis(ctx context.Context, url, prefix string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Close releases the Redis connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// generationSuffix names the companion entry that Invalidate bumps.
const generationSuffix = ":gen"

// Invalidate drops key and bumps its generation, so a GetOrLoad whose load
// started before this call does not write its result back.
func Invalidate(ctx context.Context, c Cache, key string) error {
	if err := c.Set(ctx, key+generationSuffix, []byte(uuid.NewString()), 0); err != nil {
		return err
	}
	return c.Delete(ctx, key)
}

func generation(ctx context.Context, c Cache, key string) string {
	b, err := c.Get(ctx, key+generationSuffix)
	if err != nil {
		return ""
	}
	return string(b)
}

// GetOrLoad returns the cached value for key, or calls load, caches its result
// for ttl and returns it. A result is not cached when key was invalidated
// while load ran. Cache failures are not fatal: load is used directly.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	var v T
	if b, err := c.Get(ctx, key); err == nil {
		if json.Unmarshal(b, &v) == nil {
			return v, true, nil
		}
	}

	gen := generation(ctx, c, key)
	v, err := load(ctx)
	if err != nil {
		return v, false, err
	}
	if generation(ctx, c, key) != gen {
		return v, false, nil
	}
	if b, err := json.Marshal(v); err == nil {
		_ = c.Set(ctx, key, b, ttl)
	}
	return v, false, nil
}
