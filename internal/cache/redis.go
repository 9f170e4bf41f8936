package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"snipshelf/internal/ordering"
	"snipshelf/internal/store"
)

// RedisScopeCache keeps normalized scopes in Redis as JSON with a bounded TTL.
type RedisScopeCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisScopeCache connects to redisURL and verifies the connection.
func NewRedisScopeCache(redisURL string, ttl time.Duration) (*RedisScopeCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisScopeCacheWithClient(client, ttl), nil
}

// NewRedisScopeCacheWithClient wraps an existing client.
func NewRedisScopeCacheWithClient(client *redis.Client, ttl time.Duration) *RedisScopeCache {
	return &RedisScopeCache{
		client: client,
		prefix: "scope:",
		ttl:    BoundTTL(ttl),
	}
}

func (c *RedisScopeCache) key(scope ordering.Scope) string {
	return c.prefix + scope.FolderID + ":" + scope.OwnerID
}

func (c *RedisScopeCache) TTL() time.Duration {
	return c.ttl
}

func (c *RedisScopeCache) Get(ctx context.Context, scope ordering.Scope) ([]store.Item, bool, error) {
	raw, err := c.client.Get(ctx, c.key(scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached scope: %w", err)
	}

	var items []store.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		// A payload we cannot read is a miss; the next Set overwrites it.
		return nil, false, nil
	}
	return items, true, nil
}

func (c *RedisScopeCache) Set(ctx context.Context, scope ordering.Scope, items []store.Item) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal scope: %w", err)
	}
	if err := c.client.Set(ctx, c.key(scope), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache scope: %w", err)
	}
	return nil
}

func (c *RedisScopeCache) Invalidate(ctx context.Context, scope ordering.Scope) error {
	if err := c.client.Del(ctx, c.key(scope)).Err(); err != nil {
		return fmt.Errorf("invalidate scope: %w", err)
	}
	return nil
}

func (c *RedisScopeCache) Close() error {
	return c.client.Close()
}

func (c *RedisScopeCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
