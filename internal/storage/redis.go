package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonesrussell/postpilot/internal/logger"
	"github.com/jonesrussell/postpilot/internal/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "postpilot:state:"

// RedisStore keeps documents as JSON strings in redis. Intended for
// deployments that already run redis and want bot state to survive
// container filesystem resets. Keys have no TTL; history capping is done
// by the owning component.
type RedisStore struct {
	client *redis.Client
	logger logger.Logger
}

// NewRedisStore wraps an existing redis client.
func NewRedisStore(client *redis.Client, log logger.Logger) *RedisStore {
	return &RedisStore{client: client, logger: log}
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}

// Load fetches and decodes the document at key.
func (s *RedisStore) Load(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.ErrNotFound
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode state %s: %w", key, err)
	}
	return nil
}

// Save encodes v and replaces the document at key.
func (s *RedisStore) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}

	if err := s.client.Set(ctx, redisKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	s.logger.Debug("State saved to redis", logger.String("key", key), logger.Int("bytes", len(data)))
	return nil
}
