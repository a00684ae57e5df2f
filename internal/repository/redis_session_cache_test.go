package repository

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/pkg/redis"
)

func newTestSessionCache(t *testing.T) (*miniredis.Miniredis, *RedisSessionCache) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := redis.DefaultConfig()
	cfg.Host = mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg.Port = port
	cfg.MaxRetries = 0

	client := redis.NewLazyClient(cfg)
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisSessionCache(client, time.Second)
}

func TestRedisSessionCache_SetGetDelete(t *testing.T) {
	mr, cache := newTestSessionCache(t)
	ctx := context.Background()

	alice := &domain.Principal{ID: 1, Username: "alice", DisplayName: "Alice A", Role: domain.RoleTester}
	require.NoError(t, cache.Set(ctx, alice, time.Hour))

	assert.True(t, mr.Exists("session:alice"))

	got, err := cache.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	require.NoError(t, cache.Delete(ctx, "alice"))

	got, err = cache.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSessionCache_MissReturnsNil(t *testing.T) {
	_, cache := newTestSessionCache(t)

	got, err := cache.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSessionCache_DeleteIsIdempotent(t *testing.T) {
	_, cache := newTestSessionCache(t)

	assert.NoError(t, cache.Delete(context.Background(), "nobody"))
	assert.NoError(t, cache.Delete(context.Background(), "nobody"))
}

func TestRedisSessionCache_MillisecondTTL(t *testing.T) {
	mr, cache := newTestSessionCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &domain.Principal{Username: "alice", Role: domain.RoleTester}, 1500*time.Millisecond))
	assert.Equal(t, 1500*time.Millisecond, mr.TTL("session:alice"))

	mr.FastForward(1499 * time.Millisecond)
	got, err := cache.Get(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, got)

	mr.FastForward(2 * time.Millisecond)
	got, err = cache.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSessionCache_LastWriterWins(t *testing.T) {
	_, cache := newTestSessionCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &domain.Principal{Username: "alice", DisplayName: "first", Role: domain.RoleTester}, time.Hour))
	require.NoError(t, cache.Set(ctx, &domain.Principal{Username: "alice", DisplayName: "second", Role: domain.RoleTester}, time.Hour))

	got, err := cache.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "second", got.DisplayName)
}

func TestRedisSessionCache_CorruptEntryIsMiss(t *testing.T) {
	mr, cache := newTestSessionCache(t)
	require.NoError(t, mr.Set("session:alice", "{not json"))

	got, err := cache.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("session:alice"))
}

func TestRedisSessionCache_RejectsBadInput(t *testing.T) {
	_, cache := newTestSessionCache(t)
	ctx := context.Background()

	assert.Error(t, cache.Set(ctx, nil, time.Hour))
	assert.Error(t, cache.Set(ctx, &domain.Principal{Username: "alice"}, 0))
}

func TestRedisSessionCache_Unavailable(t *testing.T) {
	mr, cache := newTestSessionCache(t)
	mr.Close()
	ctx := context.Background()

	_, err := cache.Get(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	err = cache.Set(ctx, &domain.Principal{Username: "alice", Role: domain.RoleTester}, time.Hour)
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	err = cache.Delete(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
}
