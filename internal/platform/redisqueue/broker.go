package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/fileserver-api/internal/platform/logger"
	"github.com/phrazzld/fileserver-api/internal/task"
	"github.com/redis/go-redis/v9"
)

// DefaultBlockTimeout bounds each BLMOVE so Consume notices cancellation.
const DefaultBlockTimeout = time.Second

// Broker is a task.Broker backed by Redis lists.
type Broker struct {
	client       *redis.Client
	queue        string
	processing   string
	blockTimeout time.Duration
	logger       *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var (
	_ task.Broker    = (*Broker)(nil)
	_ task.Recoverer = (*Broker)(nil)
)

// NewBroker creates a Broker on queue. consumer names this process's
// processing list and must be stable across restarts for Recover to find
// its unacknowledged messages.
func NewBroker(client *redis.Client, queue, consumer string, logger *slog.Logger) *Broker {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		client:       client,
		queue:        queue,
		processing:   queue + ":processing:" + consumer,
		blockTimeout: DefaultBlockTimeout,
		logger: logger.With(
			slog.String("component", "redis_broker"),
			slog.String("queue", queue)),
	}
}

func (b *Broker) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Publish implements task.Broker.
func (b *Broker) Publish(ctx context.Context, msg task.Message) error {
	if b.isClosed() {
		return task.ErrQueueClosed
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := b.client.LPush(ctx, b.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to push message: %w", err)
	}
	return nil
}

// Consume implements task.Broker. The message stays on the processing list
// until the delivery is acknowledged.
func (b *Broker) Consume(ctx context.Context) (task.Delivery, error) {
	log := logger.FromContextOrDefault(ctx, b.logger)

	for {
		if b.isClosed() {
			return nil, task.ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := b.client.BLMove(ctx, b.queue, b.processing, "RIGHT", "LEFT", b.blockTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if b.isClosed() {
				return nil, task.ErrQueueClosed
			}
			return nil, fmt.Errorf("failed to pop message: %w", err)
		}

		var msg task.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			log.Error("dropping malformed message", slog.String("error", err.Error()))
			if err := b.client.LRem(ctx, b.processing, 1, raw).Err(); err != nil {
				log.Error("failed to drop malformed message", slog.String("error", err.Error()))
			}
			continue
		}
		return &delivery{broker: b, raw: raw, msg: msg}, nil
	}
}

// Recover implements task.Recoverer. Messages go back to the consuming end
// of the queue in their original order, ahead of newer work.
func (b *Broker) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := b.client.LMove(ctx, b.processing, b.queue, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("failed to requeue message: %w", err)
		}
		n++
	}
}

// Close implements task.Broker and closes the underlying client.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	return b.client.Close()
}

type delivery struct {
	broker *Broker
	raw    string
	msg    task.Message
}

func (d *delivery) Message() task.Message { return d.msg }

func (d *delivery) Ack(ctx context.Context) error {
	if err := d.broker.client.LRem(ctx, d.broker.processing, 1, d.raw).Err(); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", d.msg.ID, err)
	}
	return nil
}
