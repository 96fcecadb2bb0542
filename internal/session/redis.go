package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares session entries between instances. Values are JSON encoded
// and expiry is delegated to Redis key TTLs.
type RedisStore[V any] struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore whose keys live under prefix
func NewRedisStore[V any](client *redis.Client, prefix string) *RedisStore[V] {
	return &RedisStore[V]{client: client, prefix: strings.TrimSuffix(prefix, ":") + ":"}
}

func (s *RedisStore[V]) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore[V]) Get(ctx context.Context, key string) (V, error) {
	var value V

	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return value, ErrNotFound
		}
		return value, fmt.Errorf("failed to read session entry: %w", err)
	}

	if err := json.Unmarshal(raw, &value); err != nil {
		return value, fmt.Errorf("failed to decode session entry: %w", err)
	}
	return value, nil
}

func (s *RedisStore[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode session entry: %w", err)
	}

	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session entry: %w", err)
	}
	return nil
}

func (s *RedisStore[V]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete session entry: %w", err)
	}
	return nil
}

// SweepExpired is a no-op: Redis evicts keys once their TTL elapses
func (s *RedisStore[V]) SweepExpired(context.Context) (int, error) {
	return 0, nil
}

func (s *RedisStore[V]) Keys(ctx context.Context) ([]string, error) {
	keys := []string{}
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan session keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
