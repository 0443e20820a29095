package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/fileserver-api/internal/platform/logger"
)

// consumeRetryDelay is how long a worker waits after a broker error before
// consuming again.
const consumeRetryDelay = time.Second

// WorkerPool manages a pool of worker goroutines that consume messages from
// a broker, run them and record the outcome in a result backend. Each worker
// holds at most one unacknowledged message.
type WorkerPool struct {
	broker      Broker
	results     ResultBackend
	registry    *Registry
	workerCount int

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	// errorHandler is called when a task fails. If nil, errors are only logged.
	errorHandler func(msg Message, err error)
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start.
	// Zero or negative uses DefaultWorkerPoolConfig's count.
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(
	broker Broker,
	results ResultBackend,
	registry *Registry,
	config WorkerPoolConfig,
	logger *slog.Logger,
) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = DefaultWorkerPoolConfig().WorkerCount
		logger.Warn("invalid worker count specified, using default",
			slog.Int("specified_count", config.WorkerCount),
			slog.Int("default_count", workerCount))
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		broker:      broker,
		results:     results,
		registry:    registry,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.With(slog.String("component", "worker_pool")),
	}
}

// SetErrorHandler allows setting a custom error handler for task execution failures
func (p *WorkerPool) SetErrorHandler(handler func(msg Message, err error)) {
	p.errorHandler = handler
}

// Start launches the workers. It returns immediately.
func (p *WorkerPool) Start() {
	p.logger.Info("starting worker pool", slog.Int("worker_count", p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop signals the workers to exit and waits for in-flight jobs to finish.
func (p *WorkerPool) Stop() {
	p.logger.Info("stopping worker pool")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	log := p.logger.With(slog.Int("worker_id", id))
	log.Debug("starting worker")

	for {
		delivery, err := p.broker.Consume(p.ctx)
		if err != nil {
			if p.ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				log.Debug("stopping worker")
				return
			}
			log.Error("failed to consume message", slog.String("error", err.Error()))
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(consumeRetryDelay):
			}
			continue
		}

		p.process(delivery, log)
	}
}

// process runs one delivery. In-flight jobs are never cancelled, so the
// execution context is detached from the pool's shutdown signal.
func (p *WorkerPool) process(delivery Delivery, log *slog.Logger) {
	msg := delivery.Message()
	log = log.With(
		slog.String("task_id", msg.ID),
		slog.String("task_type", msg.Type),
	)
	ctx := logger.WithLogger(context.WithoutCancel(p.ctx), log)

	p.setState(ctx, log, StateRecord{TaskID: msg.ID, State: StateStarted})

	result, err := p.execute(ctx, msg)
	if err != nil {
		log.Error("task execution failed", slog.String("error", err.Error()))
		p.setState(ctx, log, StateRecord{TaskID: msg.ID, State: StateFailure, Error: err.Error()})
		if p.errorHandler != nil {
			p.errorHandler(msg, err)
		}
	} else {
		rec := StateRecord{TaskID: msg.ID, State: StateSuccess}
		if result != nil {
			raw, mErr := json.Marshal(result)
			if mErr != nil {
				log.Error("failed to marshal task result", slog.String("error", mErr.Error()))
			} else {
				rec.Result = raw
			}
		}
		log.Info("task completed")
		p.setState(ctx, log, rec)
	}

	if err := delivery.Ack(ctx); err != nil {
		log.Error("failed to acknowledge message", slog.String("error", err.Error()))
	}
}

func (p *WorkerPool) execute(ctx context.Context, msg Message) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	t, err := p.registry.Build(msg)
	if err != nil {
		return nil, err
	}
	return t.Execute(ctx)
}

func (p *WorkerPool) setState(ctx context.Context, log *slog.Logger, rec StateRecord) {
	rec.UpdatedAt = time.Now().UTC()
	if err := p.results.SetState(ctx, rec); err != nil {
		log.Error("failed to record task state",
			slog.String("state", string(rec.State)),
			slog.String("error", err.Error()))
	}
}
