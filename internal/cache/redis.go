package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "respcache:"

// RedisStore keeps cache entries in Redis so multiple gateway instances
// share one cache. TTL is enforced by Redis itself; size bounding is
// left to Redis eviction policy.
type RedisStore struct {
	cli *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{cli: redis.NewClient(opts)}, nil
}

// Ping verifies connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.cli.Ping(ctx).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := s.cli.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return s.cli.Set(ctx, redisKeyPrefix+key, payload, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.cli.Del(ctx, redisKeyPrefix+key).Err()
}

func (s *RedisStore) Flush(ctx context.Context) error {
	iter := s.cli.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.cli.Del(ctx, keys...).Err()
}

func (s *RedisStore) Len(ctx context.Context) int {
	iter := s.cli.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	n := 0
	for iter.Next(ctx) {
		n++
	}
	if iter.Err() != nil {
		return -1
	}
	return n
}

func (s *RedisStore) Close() error { return s.cli.Close() }
