// internal/roundstate/redis.go
package roundstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"app-deployer/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares round state between processes. Each task is one JSON
// value written with SETNX so the first record wins.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(taskID string) string {
	return s.prefix + taskID
}

func (s *RedisStore) Put(ctx context.Context, record *models.RepoRecord) error {
	if err := validate(record); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.client.SetNX(ctx, s.key(record.Task), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx %s: %w", record.Task, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, taskID string) (*models.RepoRecord, error) {
	data, err := s.client.Get(ctx, s.key(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", taskID, err)
	}

	var record models.RepoRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", taskID, err)
	}
	return &record, nil
}
