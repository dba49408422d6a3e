package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vroomshare/service-booking/pkg/domain"
)

// mapClient is an in-process stand-in for Redis.
type mapClient struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMapClient() *mapClient {
	return &mapClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *mapClient) SetNX(_ context.Context, key string, value interface{}, exp time.Duration) *redis.BoolCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return redis.NewBoolResult(false, c.err)
	}
	if _, ok := c.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	c.data[key] = value.(string)
	c.ttls[key] = exp
	return redis.NewBoolResult(true, nil)
}

func (c *mapClient) Get(_ context.Context, key string) *redis.StringCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (c *mapClient) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value.(string)
	c.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (c *mapClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisStore_Lifecycle(t *testing.T) {
	client := newMapClient()
	store := NewRedisStore(client, "idem", 0)
	ctx := context.Background()

	_, done, err := store.Begin(ctx, "user-1", "key-a")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, DefaultTTL, client.ttls["idem:user-1:key-a"])

	_, _, err = store.Begin(ctx, "user-1", "key-a")
	assert.True(t, domain.HasCode(err, domain.CodeConflict))

	require.NoError(t, store.Complete(ctx, "user-1", "key-a", "booking-42"))
	result, done, err := store.Begin(ctx, "user-1", "key-a")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "booking-42", result)

	// Keys are scoped per caller.
	_, done, err = store.Begin(ctx, "user-2", "key-a")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestRedisStore_AbortAllowsRetry(t *testing.T) {
	store := NewRedisStore(newMapClient(), "idem", time.Hour)
	ctx := context.Background()

	_, _, err := store.Begin(ctx, "user-1", "key-b")
	require.NoError(t, err)
	require.NoError(t, store.Abort(ctx, "user-1", "key-b"))

	_, done, err := store.Begin(ctx, "user-1", "key-b")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestRedisStore_BackendError(t *testing.T) {
	client := newMapClient()
	client.err = errors.New("connection refused")
	store := NewRedisStore(client, "idem", time.Hour)

	_, _, err := store.Begin(context.Background(), "user-1", "key-c")
	require.Error(t, err)
	_, isDomain := domain.AsDomainError(err)
	assert.False(t, isDomain)
}
