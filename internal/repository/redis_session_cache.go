package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/pkg/redis"
)

const (
	// Cache key prefix, one key per username
	sessionKeyPrefix = "session:"

	defaultCacheTimeout = 500 * time.Millisecond
)

// RedisSessionCache implements SessionCache on Redis
type RedisSessionCache struct {
	cache   *redis.Client
	timeout time.Duration
}

// NewRedisSessionCache creates a session cache whose calls are each bounded by timeout
func NewRedisSessionCache(cache *redis.Client, timeout time.Duration) *RedisSessionCache {
	if timeout <= 0 {
		timeout = defaultCacheTimeout
	}
	return &RedisSessionCache{
		cache:   cache,
		timeout: timeout,
	}
}

func sessionKey(username string) string {
	return sessionKeyPrefix + username
}

// Get returns the cached principal, or (nil, nil) when there is no active session
func (c *RedisSessionCache) Get(ctx context.Context, username string) (*domain.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cached, err := c.cache.Get(ctx, sessionKey(username)).Result()
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, cacheError("get session", err)
	}

	var principal domain.Principal
	if err := json.Unmarshal([]byte(cached), &principal); err != nil {
		// Unreadable entries count as logged out
		c.cache.Del(ctx, sessionKey(username))
		return nil, nil
	}
	return &principal, nil
}

// Set stores the principal under its username with a millisecond TTL
func (c *RedisSessionCache) Set(ctx context.Context, principal *domain.Principal, ttl time.Duration) error {
	if principal == nil || principal.Username == "" {
		return fmt.Errorf("set session: empty principal")
	}
	if ttl <= 0 {
		return fmt.Errorf("set session: ttl must be positive, got %s", ttl)
	}

	data, err := json.Marshal(principal)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.cache.Set(ctx, sessionKey(principal.Username), data, ttl).Err(); err != nil {
		return cacheError("set session", err)
	}
	return nil
}

// Delete removes the session entry; deleting a missing entry is not an error
func (c *RedisSessionCache) Delete(ctx context.Context, username string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.cache.Del(ctx, sessionKey(username)).Err(); err != nil {
		return cacheError("delete session", err)
	}
	return nil
}
