package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Common errors returned by brokers
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// MemoryBroker is a buffered in-process Broker. Messages do not survive a
// restart and Ack is a no-op.
type MemoryBroker struct {
	messages chan Message
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewMemoryBroker creates a broker with the given buffer size.
func NewMemoryBroker(size int, logger *slog.Logger) *MemoryBroker {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBroker{
		messages: make(chan Message, size),
		logger:   logger.With(slog.String("component", "memory_broker")),
		done:     make(chan struct{}),
	}
}

var _ Broker = (*MemoryBroker)(nil)

// Publish adds a message without blocking. It returns ErrQueueFull when the
// buffer is at capacity and ErrQueueClosed after Close.
func (q *MemoryBroker) Publish(_ context.Context, msg Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.messages <- msg:
		q.logger.Debug("task enqueued",
			slog.String("task_id", msg.ID),
			slog.String("task_type", msg.Type),
			slog.Int("queue_len", q.Len()),
			slog.Int("queue_cap", cap(q.messages)))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.messages))
	}
}

// Consume implements Broker.Consume.
func (q *MemoryBroker) Consume(ctx context.Context) (Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, ErrQueueClosed
	case msg := <-q.messages:
		return memoryDelivery{msg: msg}, nil
	}
}

// Close stops accepting messages. Buffered messages are dropped.
func (q *MemoryBroker) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
		q.logger.Info("task queue closed", slog.Int("dropped", q.Len()))
	}
	return nil
}

// Len returns the number of buffered messages.
func (q *MemoryBroker) Len() int {
	return len(q.messages)
}

type memoryDelivery struct {
	msg Message
}

func (d memoryDelivery) Message() Message           { return d.msg }
func (d memoryDelivery) Ack(context.Context) error { return nil }
