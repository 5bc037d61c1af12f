package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"aspos-sync/internal/model"
)

// RedisStore keeps tasks as JSON entries of a Redis list.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a store on the list keyPrefix+":queue".
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, key: keyPrefix + ":queue"}
}

// Push appends task.
func (s *RedisStore) Push(ctx context.Context, task model.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push task: %w", err)
	}
	return nil
}

// Pop removes the head task.
func (s *RedisStore) Pop(ctx context.Context) (*model.SyncTask, error) {
	data, err := s.client.LPop(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop task: %w", err)
	}
	var task model.SyncTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &task, nil
}

// List returns the pending tasks. Entries that fail to decode are left out.
func (s *RedisStore) List(ctx context.Context) ([]model.SyncTask, error) {
	entries, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	tasks := make([]model.SyncTask, 0, len(entries))
	for _, e := range entries {
		var task model.SyncTask
		if json.Unmarshal([]byte(e), &task) == nil {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// Len returns the list length.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return int(n), nil
}

var _ Store = (*RedisStore)(nil)
