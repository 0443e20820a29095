package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/phrazzld/fileserver-api/internal/config"
	"github.com/phrazzld/fileserver-api/internal/platform/kafkaqueue"
	"github.com/phrazzld/fileserver-api/internal/platform/redisqueue"
	"github.com/phrazzld/fileserver-api/internal/task"
)

// redisQueueName is the list the Redis broker publishes jobs to.
const redisQueueName = "fileserver:tasks"

func urlScheme(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid queue url: %w", err)
	}
	return u.Scheme, nil
}

// newBroker selects the task broker from the scheme of cfg.BrokerURL.
// Redis brokers and result backends each own their client, since closing
// either one closes the client.
func newBroker(ctx context.Context, cfg config.QueueConfig, logger *slog.Logger) (task.Broker, error) {
	scheme, err := urlScheme(cfg.BrokerURL)
	if err != nil {
		return nil, err
	}

	switch scheme {
	case "memory":
		return task.NewMemoryBroker(cfg.QueueSize, logger), nil
	case "redis", "rediss":
		client, err := redisqueue.NewClient(ctx, cfg.BrokerURL)
		if err != nil {
			return nil, err
		}
		return redisqueue.NewBroker(client, redisQueueName, cfg.ConsumerName, logger), nil
	case "kafka":
		brokers, topic, err := kafkaqueue.ParseURL(cfg.BrokerURL)
		if err != nil {
			return nil, err
		}
		return kafkaqueue.NewBroker(brokers, topic, cfg.ConsumerGroup, logger), nil
	default:
		return nil, fmt.Errorf("unsupported broker scheme %q", scheme)
	}
}

// newResultBackend selects the result backend from the scheme of
// cfg.ResultBackendURL.
func newResultBackend(ctx context.Context, cfg config.QueueConfig) (task.ResultBackend, error) {
	scheme, err := urlScheme(cfg.ResultBackendURL)
	if err != nil {
		return nil, err
	}

	switch scheme {
	case "memory":
		return task.NewMemoryResultBackend(cfg.ResultExpiry), nil
	case "redis", "rediss":
		client, err := redisqueue.NewClient(ctx, cfg.ResultBackendURL)
		if err != nil {
			return nil, err
		}
		return redisqueue.NewResultBackend(client, cfg.ResultExpiry), nil
	default:
		return nil, fmt.Errorf("unsupported result backend scheme %q", scheme)
	}
}
