package binarydata

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "weft:binary:"

// redisTTL bounds how long orphaned payloads survive; completed executions
// delete their keys explicitly.
const redisTTL = 7 * 24 * time.Hour

// RedisManager stores payloads as Redis strings keyed by
// "weft:binary:<executionID>:<fileID>".
type RedisManager struct {
	client *redis.Client
}

// NewRedisManager connects to the Redis instance at url.
func NewRedisManager(url string) (*RedisManager, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisManager{client: redis.NewClient(opts)}, nil
}

func (m *RedisManager) Store(ctx context.Context, executionID string, data []byte) (string, error) {
	fileID := uuid.New().String()
	id := executionID + ":" + fileID

	err := m.client.Set(ctx, redisKeyPrefix+id, data, redisTTL).Err()
	if err != nil {
		return "", fmt.Errorf("failed to store binary data in redis: %w", err)
	}

	return id, nil
}

func (m *RedisManager) Retrieve(ctx context.Context, id string) ([]byte, error) {
	data, err := m.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve binary data %q from redis: %w", id, err)
	}

	return data, nil
}

func (m *RedisManager) Copy(ctx context.Context, id, executionID string) (string, error) {
	data, err := m.Retrieve(ctx, id)
	if err != nil {
		return "", err
	}

	return m.Store(ctx, executionID, data)
}

func (m *RedisManager) DeleteByExecution(ctx context.Context, executionID string) error {
	pattern := redisKeyPrefix + executionID + ":*"

	iter := m.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := m.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete binary data key %q: %w", iter.Val(), err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan binary data keys: %w", err)
	}

	return nil
}
