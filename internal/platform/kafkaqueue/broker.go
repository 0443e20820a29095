// Package kafkaqueue implements task.Broker on a Kafka topic using a
// consumer group.
//
// Messages are keyed by job id. A delivery's Ack commits its offset; since
// Kafka offsets are per partition, committing a later message also marks
// earlier uncommitted messages of the same partition as consumed. Jobs that
// were in flight when a worker crashed are redelivered only if no later
// message in their partition was committed first.
package kafkaqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/phrazzld/fileserver-api/internal/platform/logger"
	"github.com/phrazzld/fileserver-api/internal/task"
	"github.com/segmentio/kafka-go"
)

// ErrInvalidURL is returned by ParseURL for malformed broker URLs.
var ErrInvalidURL = errors.New("invalid kafka url")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Broker is a task.Broker backed by one Kafka topic.
type Broker struct {
	writer messageWriter
	reader messageReader
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ task.Broker = (*Broker)(nil)

// ParseURL splits kafka://host:port[,host:port]/topic into brokers and topic.
func ParseURL(raw string) ([]string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "kafka" {
		return nil, "", fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}

	var brokers []string
	for _, h := range strings.Split(u.Host, ",") {
		if h = strings.TrimSpace(h); h != "" {
			brokers = append(brokers, h)
		}
	}
	topic := strings.Trim(u.Path, "/")
	if len(brokers) == 0 || topic == "" {
		return nil, "", fmt.Errorf("%w: need brokers and topic in %q", ErrInvalidURL, raw)
	}
	return brokers, topic, nil
}

// NewBroker connects a writer and a consumer-group reader to topic.
func NewBroker(brokers []string, topic, groupID string, logger *slog.Logger) *Broker {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	if logger == nil {
		logger = slog.Default()
	}
	return newBroker(writer, reader, logger.With(slog.String("topic", topic)))
}

func newBroker(writer messageWriter, reader messageReader, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		writer: writer,
		reader: reader,
		logger: logger.With(slog.String("component", "kafka_broker")),
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
	if err := b.writer.WriteMessages(ctx, kafka.Message{Key: []byte(msg.ID), Value: data}); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Consume implements task.Broker.
func (b *Broker) Consume(ctx context.Context) (task.Delivery, error) {
	log := logger.FromContextOrDefault(ctx, b.logger)

	for {
		if b.isClosed() {
			return nil, task.ErrQueueClosed
		}

		km, err := b.reader.FetchMessage(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, io.EOF) || b.isClosed() {
				return nil, task.ErrQueueClosed
			}
			return nil, fmt.Errorf("failed to fetch message: %w", err)
		}

		var msg task.Message
		if err := json.Unmarshal(km.Value, &msg); err != nil {
			log.Error("dropping malformed message",
				slog.Int("partition", km.Partition),
				slog.Int64("offset", km.Offset),
				slog.String("error", err.Error()))
			if err := b.reader.CommitMessages(ctx, km); err != nil {
				log.Error("failed to commit malformed message", slog.String("error", err.Error()))
			}
			continue
		}
		return &delivery{reader: b.reader, km: km, msg: msg}, nil
	}
}

// Close implements task.Broker.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	return errors.Join(b.writer.Close(), b.reader.Close())
}

type delivery struct {
	reader messageReader
	km     kafka.Message
	msg    task.Message
}

func (d *delivery) Message() task.Message { return d.msg }

func (d *delivery) Ack(ctx context.Context) error {
	if err := d.reader.CommitMessages(ctx, d.km); err != nil {
		return fmt.Errorf("failed to commit message %s: %w", d.msg.ID, err)
	}
	return nil
}
