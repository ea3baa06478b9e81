package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scanCount = 100

var _ KeyValueStore = (*RedisStore)(nil)

// RedisStore stores each record as a plain Redis string.
type RedisStore struct {
	client redis.Cmdable
	logger *zap.Logger
}

func NewRedisStore(client redis.Cmdable, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		logger: logger,
	}
}

// GetAllKeys walks the keyspace with SCAN so large databases are not blocked by KEYS.
func (s *RedisStore) GetAllKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, "*", scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Error("Failed to scan keys", zap.Error(err))
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

func (s *RedisStore) MultiGet(ctx context.Context, keys []string) ([]Item, error) {
	if len(keys) == 0 {
		return []Item{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		s.logger.Error("Failed to get keys", zap.Int("count", len(keys)), zap.Error(err))
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	items := make([]Item, 0, len(keys))
	for i, key := range keys {
		item := Item{Key: key}
		// MGET 對不存在的 key 回傳 nil
		if value, ok := values[i].(string); ok {
			item.Value = value
			item.Found = true
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *RedisStore) SetItem(ctx context.Context, key, value string) error {
	if err := validateKeys(key); err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		s.logger.Error("Failed to set key", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) RemoveItem(ctx context.Context, key string) error {
	if err := validateKeys(key); err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Error("Failed to remove key", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) MultiRemove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := validateKeys(keys...); err != nil {
		return err
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Error("Failed to remove keys", zap.Int("count", len(keys)), zap.Error(err))
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
