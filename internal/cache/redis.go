// Package cache provides effective-permission caches keyed by user id. Both
// implementations satisfy rbac.Cache; the composition root picks the Redis
// variant when an address is configured and falls back to the in-process LRU
// otherwise.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gatehouse.org/internal/rbac"
)

const (
	keyPrefix      = "authz:perms:"
	defaultTimeout = 5 * time.Second
)

// RedisConfig captures the settings for establishing a Redis connection.
type RedisConfig struct {
	Addr    string
	DB      int
	Timeout time.Duration
}

// Connect initialises a Redis client and validates connectivity with a ping.
func Connect(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Redis is a distributed permission cache shared across instances.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an established client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

var _ rbac.Cache = (*Redis)(nil)

// Get returns the cached set for the user, reporting a miss on absent keys.
func (c *Redis) Get(ctx context.Context, userID string) (rbac.PermissionSet, bool, error) {
	raw, err := c.client.Get(ctx, key(userID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	var codes []string
	if err := json.Unmarshal(raw, &codes); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return rbac.NewPermissionSet(codes...), true, nil
}

// Put stores the set with the given TTL.
func (c *Redis) Put(ctx context.Context, userID string, set rbac.PermissionSet, ttl time.Duration) error {
	raw, err := json.Marshal(set.Codes())
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return c.client.Set(ctx, key(userID), raw, ttl).Err()
}

// Invalidate drops cached sets for the given users.
func (c *Redis) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = key(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

func key(userID string) string {
	return keyPrefix + userID
}
