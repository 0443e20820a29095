package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/fileserver-api/internal/api"
	"github.com/phrazzld/fileserver-api/internal/api/middleware"
	"github.com/phrazzld/fileserver-api/internal/config"
	"github.com/phrazzld/fileserver-api/internal/platform/blob"
	"github.com/phrazzld/fileserver-api/internal/platform/postgres"
	"github.com/phrazzld/fileserver-api/internal/service"
	"github.com/phrazzld/fileserver-api/internal/service/auth"
	"github.com/phrazzld/fileserver-api/internal/task"
	"github.com/spf13/afero"
)

// application holds the wired components of a running server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	runner *task.TaskRunner
	router http.Handler
}

// newApplication wires stores, the blob backend, the task runner, services
// and handlers. The runner is created but not started.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}

	userStore := postgres.NewPostgresUserStore(db, cfg.Auth.BcryptCost, logger)
	fileStore := postgres.NewPostgresFileStore(db, logger)
	statusStore := postgres.NewPostgresTaskStatusStore(db, logger)

	blobs, err := newBlobStore(ctx, cfg.Upload, logger)
	if err != nil {
		return nil, err
	}

	registry := task.NewRegistry()
	runner, err := newTaskRunner(ctx, cfg.Queue, registry, logger)
	if err != nil {
		return nil, err
	}

	fileFactory, err := task.NewFileProcessingFactory(fileStore, statusStore, task.NewBlobCheckProcessor(blobs), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file processing factory: %w", err)
	}
	batchFactory, err := task.NewBatchProcessingFactory(task.BatchDeps{
		Files:    fileStore,
		Statuses: statusStore,
		Enqueuer: runner,
		States:   runner,
		Tx:       task.NewStoreTxRunner(db, fileStore),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch processing factory: %w", err)
	}
	registry.Register(task.TaskTypeFileProcessing, fileFactory)
	registry.Register(task.TaskTypeBatchProcessing, batchFactory)

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	userService := service.NewUserService(userStore, auth.NewBcryptVerifier(), logger)
	uploadService, err := service.NewUploadService(service.UploadServiceConfig{
		Files:    fileStore,
		Statuses: statusStore,
		Blobs:    blobs,
		Queue:    runner,
		MaxSize:  cfg.Upload.MaxSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload service: %w", err)
	}
	statusService := service.NewTaskStatusService(statusStore, runner, logger)

	apiRoutes := api.Routes(
		api.NewAuthHandler(userService, jwtService, logger),
		api.NewFileHandler(uploadService, statusService, cfg.Upload.MaxSize),
		middleware.NewAuthMiddleware(jwtService, userService),
	)

	return &application{
		config: cfg,
		logger: logger,
		db:     db,
		runner: runner,
		router: newRouter(cfg.Server, logger, apiRoutes),
	}, nil
}

func newBlobStore(ctx context.Context, cfg config.UploadConfig, logger *slog.Logger) (blob.Store, error) {
	switch cfg.Backend {
	case "s3":
		s, err := blob.NewS3Store(ctx, cfg.S3, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 blob store: %w", err)
		}
		return s, nil
	default:
		s, err := blob.NewLocalStore(afero.NewOsFs(), cfg.Dir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create local blob store: %w", err)
		}
		return s, nil
	}
}

func newTaskRunner(
	ctx context.Context,
	cfg config.QueueConfig,
	registry *task.Registry,
	logger *slog.Logger,
) (*task.TaskRunner, error) {
	broker, err := newBroker(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task broker: %w", err)
	}
	results, err := newResultBackend(ctx, cfg)
	if err != nil {
		_ = broker.Close()
		return nil, fmt.Errorf("failed to create result backend: %w", err)
	}
	runnerCfg := task.DefaultTaskRunnerConfig()
	if cfg.WorkerCount > 0 {
		runnerCfg.WorkerCount = cfg.WorkerCount
	}
	return task.NewTaskRunner(broker, results, registry, runnerCfg, logger), nil
}

// Run starts the workers and serves HTTP until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.runner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}
	app.logger.Info("task runner started", slog.Int("workers", app.config.Queue.WorkerCount))

	return startServer(ctx, app.config.Server.Port, app.router, app.logger)
}

// cleanup stops the workers and closes the database.
func (app *application) cleanup() {
	app.logger.Info("stopping task runner")
	app.runner.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database connection", slog.String("error", err.Error()))
	}
	app.logger.Info("application cleanup completed")
}
