package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vroomshare/service-booking/pkg/domain"
)

// DefaultTTL is how long a key and its result are remembered.
const DefaultTTL = 24 * time.Hour

const inFlight = "in-flight"

// RedisClient is the subset of *redis.Client the store uses.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore remembers the result of requests carrying an Idempotency-Key.
type RedisStore struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store whose keys live under prefix.
func NewRedisStore(client RedisClient, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Begin reserves key for scope. It returns the stored result when the request already
// completed, and CONFLICT while an identical request is still running.
func (s *RedisStore) Begin(ctx context.Context, scope, key string) (result string, done bool, err error) {
	k := s.key(scope, key)
	ok, err := s.client.SetNX(ctx, k, inFlight, s.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if ok {
		return "", false, nil
	}

	val, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired or aborted between the two calls.
		return s.Begin(ctx, scope, key)
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if val == inFlight {
		return "", false, domain.NewConflictError("a request with this idempotency key is already in progress")
	}
	return val, true, nil
}

// Complete stores the result of a reserved request.
func (s *RedisStore) Complete(ctx context.Context, scope, key, result string) error {
	if err := s.client.Set(ctx, s.key(scope, key), result, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency result: %w", err)
	}
	return nil
}

// Abort frees a reserved key so the request can be retried.
func (s *RedisStore) Abort(ctx context.Context, scope, key string) error {
	if err := s.client.Del(ctx, s.key(scope, key)).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

func (s *RedisStore) key(scope, key string) string {
	return s.prefix + ":" + scope + ":" + key
}
