package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisConfig(t *testing.T) (*miniredis.Miniredis, *Config) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Host = mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg.Port = port
	cfg.MaxRetries = 0
	return mr, cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6379, cfg.Port)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestConfig_Addr(t *testing.T) {
	cfg := &Config{
		Host: "redis.example.com",
		Port: 6380,
	}
	assert.Equal(t, "redis.example.com:6380", cfg.Addr())
}

func TestNewClient_InvalidConfig(t *testing.T) {
	cfg := &Config{
		Host:          "127.0.0.1",
		Port:          1,
		MaxRetries:    0,
		RetryInterval: 100 * time.Millisecond,
		DialTimeout:   200 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewClient(ctx, cfg)
	assert.Error(t, err)
}

func TestClient_BasicOperations(t *testing.T) {
	mr, cfg := newMiniredisConfig(t)
	ctx := context.Background()

	client, err := NewClient(ctx, cfg)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.HealthCheck(ctx))

	require.NoError(t, client.Set(ctx, "session:alice", "v", 250*time.Millisecond).Err())

	val, err := client.Get(ctx, "session:alice").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	ttl, err := client.PTTL(ctx, "session:alice").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	mr.FastForward(300 * time.Millisecond)
	_, err = client.Get(ctx, "session:alice").Result()
	assert.True(t, IsNil(err))
}

func TestNewLazyClient_DoesNotProbe(t *testing.T) {
	client := NewLazyClient(&Config{Host: "127.0.0.1", Port: 1, DialTimeout: 100 * time.Millisecond})
	defer client.Close()

	assert.Error(t, client.Ping(context.Background()))
}

func TestClient_SetNX(t *testing.T) {
	_, cfg := newMiniredisConfig(t)
	ctx := context.Background()

	client, err := NewClient(ctx, cfg)
	require.NoError(t, err)
	defer client.Close()

	first, err := client.SetNX(ctx, "idempotency:k", "a", time.Minute).Result()
	require.NoError(t, err)
	assert.True(t, first)

	second, err := client.SetNX(ctx, "idempotency:k", "b", time.Minute).Result()
	require.NoError(t, err)
	assert.False(t, second)

	val, err := client.Get(ctx, "idempotency:k").Result()
	require.NoError(t, err)
	assert.Equal(t, "a", val)
}
