package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
)

// JobRunner executes one dispatched stage job. The orchestrator's
// ExecuteStage is the production runner.
type JobRunner func(ctx context.Context, job domain.StageJob) error

// Pool is the inline dispatcher: a fixed set of worker goroutines consuming
// stage jobs from a bounded queue inside the process.
type Pool struct {
	size    int
	runner  JobRunner
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	jobs    chan domain.StageJob
	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool. The queue holds size*16 jobs; Dispatch
// fails fast beyond that instead of blocking a request.
func NewPool(
	size int,
	runner JobRunner,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:    size,
		runner:  runner,
		metrics: metrics,
		logger:  logger,
		jobs:    make(chan domain.StageJob, size*16),
		workers: make([]*worker, size),
		ctx:     ctx,
		cancel:  cancel,
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Dispatch (ports.Dispatcher interface)
func (p *Pool) Dispatch(ctx context.Context, job domain.StageJob) error {
	if err := p.ctx.Err(); err != nil {
		return fmt.Errorf("worker pool is shut down")
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return fmt.Errorf("stage queue full, %d jobs waiting", len(p.jobs))
	}
}

// Shutdown gracefully shuts down the worker pool
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.health.Stop()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// QueueDepth returns the number of jobs waiting for a worker.
func (p *Pool) QueueDepth() int {
	return len(p.jobs)
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.setStatus(WorkerStatusStopped)
			w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
			return
		case job := <-w.pool.jobs:
			w.execute(ctx, job)
		}
	}
}

// execute runs a single stage job
func (w *worker) execute(ctx context.Context, job domain.StageJob) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()
	defer w.setStatus(WorkerStatusIdle)

	w.pool.logger.Info("worker executing stage",
		zap.String("worker_id", w.id),
		zap.String("run_id", job.RunID),
		zap.String("stage", string(job.Stage)),
		zap.Int("generation", job.Generation))

	if err := w.pool.runner(ctx, job); err != nil {
		w.pool.logger.Warn("stage job returned error",
			zap.String("worker_id", w.id),
			zap.String("run_id", job.RunID),
			zap.String("stage", string(job.Stage)),
			zap.Error(err))
	}
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	w.mu.Unlock()
}
