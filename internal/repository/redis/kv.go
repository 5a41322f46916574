package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/redis/go-redis/v9"
)

const kvPrefix = "widget:"

// KVStore keeps widget storage keys in Redis. A zero TTL keeps keys
// until they are removed.
type KVStore struct {
	client *Client
	ttl    time.Duration
}

// NewKVStore creates a Redis-backed key-value store
func NewKVStore(client *Client, ttl time.Duration) *KVStore {
	return &KVStore{client: client, ttl: ttl}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.rdb.Get(ctx, kvPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.rdb.Set(ctx, kvPrefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Remove(ctx context.Context, key string) error {
	if err := s.client.rdb.Del(ctx, kvPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// Ping verifies the underlying connection
func (s *KVStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// FlushAll removes every widget key and returns how many were deleted
func (s *KVStore) FlushAll(ctx context.Context) (int64, error) {
	var cursor uint64
	var deleted int64

	for {
		keys, nextCursor, err := s.client.rdb.Scan(ctx, cursor, kvPrefix+"*", 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			count, err := s.client.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += count
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}
