package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore handles Redis operations for rate-limit counters.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// rateLimitKey returns the key for a caller's rate limit counter.
func rateLimitKey(bucket, caller string) string {
	return fmt.Sprintf("ratelimit:%s:%s", bucket, caller)
}

// IncrRateLimit increments the caller's counter for a bucket and returns
// the count within the current window. The window starts with the first
// hit and expires after the given duration.
func (s *RedisStore) IncrRateLimit(ctx context.Context, bucket, caller string, window time.Duration) (int64, error) {
	key := rateLimitKey(bucket, caller)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		s.client.Expire(ctx, key, window)
	}
	return count, nil
}
