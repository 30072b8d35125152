package asynq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/domain"
)

// TypeStageRun is the task type carrying one stage invocation
const TypeStageRun = "stage:run"

// retention keeps completed task records inspectable for a day
const retention = 24 * time.Hour

// Dispatcher implements ports.Dispatcher by enqueueing stage jobs on Redis
type Dispatcher struct {
	client       *asynq.Client
	stageTimeout time.Duration
	logger       *zap.Logger
}

// NewDispatcher creates a new asynq-backed dispatcher
func NewDispatcher(redisURL string, stageTimeout time.Duration, logger *zap.Logger) (*Dispatcher, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	return &Dispatcher{
		client:       asynq.NewClient(opt),
		stageTimeout: stageTimeout,
		logger:       logger,
	}, nil
}

// Dispatch enqueues one stage invocation (ports.Dispatcher interface).
// MaxRetry is zero: retrying a stage is an orchestrator decision, never a
// queue one.
func (d *Dispatcher) Dispatch(ctx context.Context, job domain.StageJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal stage job: %w", err)
	}

	task := asynq.NewTask(TypeStageRun, payload,
		asynq.MaxRetry(0),
		asynq.Timeout(d.stageTimeout),
		asynq.Retention(retention),
	)

	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue stage job: %w", err)
	}

	d.logger.Debug("stage job enqueued",
		zap.String("run_id", job.RunID),
		zap.String("stage", string(job.Stage)),
		zap.Int("generation", job.Generation),
		zap.String("task_id", info.ID))

	return nil
}

// Close releases the queue client
func (d *Dispatcher) Close() error {
	return d.client.Close()
}

// JobRunner executes one stage job on the worker side
type JobRunner func(ctx context.Context, job domain.StageJob) error

// Worker consumes stage jobs from Redis and executes them
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewWorker creates a new asynq worker server
func NewWorker(redisURL string, concurrency int, runner JobRunner, logger *zap.Logger) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"default": 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeStageRun, func(ctx context.Context, task *asynq.Task) error {
		var job domain.StageJob
		if err := json.Unmarshal(task.Payload(), &job); err != nil {
			// A payload that never unmarshals will never succeed
			return fmt.Errorf("failed to unmarshal stage job: %v: %w", err, asynq.SkipRetry)
		}
		return runner(ctx, job)
	})

	return &Worker{
		server: server,
		mux:    mux,
		logger: logger,
	}, nil
}

// Start begins consuming jobs without blocking
func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}

	w.logger.Info("stage worker started")
	return nil
}

// Shutdown waits for in-flight jobs and stops the server
func (w *Worker) Shutdown() {
	w.server.Shutdown()
	w.logger.Info("stage worker stopped")
}
