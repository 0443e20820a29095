package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/fileserver-api/internal/task"
	"github.com/redis/go-redis/v9"
)

const resultKeyPrefix = "task-result:"

// ResultBackend is a task.ResultBackend storing one JSON record per job with
// a TTL that is reset on every write.
type ResultBackend struct {
	client *redis.Client
	expiry time.Duration
}

var _ task.ResultBackend = (*ResultBackend)(nil)

// NewResultBackend creates a ResultBackend whose records expire after expiry.
func NewResultBackend(client *redis.Client, expiry time.Duration) *ResultBackend {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &ResultBackend{client: client, expiry: expiry}
}

func resultKey(taskID string) string {
	return resultKeyPrefix + taskID
}

// SetState implements task.ResultBackend.
func (r *ResultBackend) SetState(ctx context.Context, rec task.StateRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal task state: %w", err)
	}
	if err := r.client.Set(ctx, resultKey(rec.TaskID), data, r.expiry).Err(); err != nil {
		return fmt.Errorf("failed to store task state: %w", err)
	}
	return nil
}

// GetState implements task.ResultBackend.
func (r *ResultBackend) GetState(ctx context.Context, taskID string) (*task.StateRecord, error) {
	data, err := r.client.Get(ctx, resultKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, task.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task state: %w", err)
	}

	var rec task.StateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode task state: %w", err)
	}
	return &rec, nil
}

// Ping checks that Redis is reachable.
func (r *ResultBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close implements task.ResultBackend and closes the underlying client.
func (r *ResultBackend) Close() error {
	return r.client.Close()
}
