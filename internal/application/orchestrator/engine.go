package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
	"go.uber.org/zap"
)

// errSuperseded tells a stage executor that the run moved on underneath it:
// cancelled, failed, or re-dispatched with a newer generation. The executor
// must stop; the completion path drops the result instead of failing the run.
var errSuperseded = errors.New("stage superseded")

// changeSet collects the events and stage jobs one mutation produces. Events
// publish after the run persists, still under the run lock so per-run event
// order matches write order; jobs dispatch after the lock releases.
type changeSet struct {
	events []domain.Event
	jobs   []domain.StageJob
}

// runHandle serializes all mutations of one run and tracks the cancel
// function of its active stage execution. cancel is touched only while mu
// is held.
type runHandle struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// handle returns the per-run handle, creating it on first use.
func (m *Manager) handle(runID string) *runHandle {
	h, _ := m.handles.LoadOrStore(runID, &runHandle{})
	return h.(*runHandle)
}

// update runs fn against the run under its lock, persists the mutated run,
// refreshes the catalog summary, publishes the queued events, and finally
// dispatches the queued stage jobs. An error from fn abandons the mutation;
// the stored run is untouched. An invalid transition surfacing here is a
// pipeline bug and additionally forces the run to FAILED.
func (m *Manager) update(ctx context.Context, runID string, fn func(run *domain.Run, q *changeSet) error) error {
	h := m.handle(runID)
	h.mu.Lock()

	run, err := m.store.Get(ctx, runID)
	if err != nil {
		h.mu.Unlock()
		return err
	}

	q := &changeSet{}
	if err := fn(run, q); err != nil {
		h.mu.Unlock()
		if errors.Is(err, domain.ErrInvalidTransition) {
			m.logger.Error("invalid transition attempted",
				zap.String("run_id", runID),
				zap.Error(err))
			m.failRun(ctx, runID, -1, err.Error())
		}
		return err
	}

	if err := m.store.Save(ctx, run); err != nil {
		h.mu.Unlock()
		return fmt.Errorf("failed to save run: %w", err)
	}
	if err := m.catalog.SaveSummary(ctx, run); err != nil {
		m.logger.Warn("failed to update catalog summary",
			zap.String("run_id", runID),
			zap.Error(err))
	}
	m.publish(ctx, q.events)
	if run.State.Terminal() {
		// Nothing mutates a terminal run again; stop any in-flight
		// stage and drop the handle. A late stage job recreates one
		// briefly and its staleness check drops it again.
		if cancel := h.cancel; cancel != nil {
			h.cancel = nil
			cancel()
		}
		m.handles.Delete(runID)
	}
	h.mu.Unlock()

	for _, job := range q.jobs {
		m.dispatchJob(ctx, job)
	}
	return nil
}

// transition moves the run along one table edge, appends the log line, and
// queues the state_change event. An edge outside the table never mutates
// the run.
func (m *Manager) transition(run *domain.Run, q *changeSet, to domain.State, message string) error {
	from := run.State
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}

	run.State = to
	run.Seq++
	run.UpdatedAt = time.Now()
	run.AppendLog(message)
	q.events = append(q.events, domain.NewStateChange(run, message))

	switch {
	case !from.Terminal() && to.Terminal():
		m.active.Add(-1)
	case from.Terminal() && !to.Terminal():
		// FAILED recovery re-enters the pipeline
		m.active.Add(1)
	}
	m.metrics.SetActiveRuns(int(m.active.Load()))

	m.logger.Info("run state changed",
		zap.String("run_id", run.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

// recordProgress sets the run's progress fraction and queues the progress
// event. Artifacts ride on the event only when the mutation touched them.
func (m *Manager) recordProgress(run *domain.Run, q *changeSet, fraction float64, message string, withArtifacts bool) {
	run.Progress = domain.ClampProgress(fraction)
	run.Seq++
	run.UpdatedAt = time.Now()
	if message != "" {
		run.AppendLog(message)
	}
	q.events = append(q.events, domain.NewProgress(run, message, withArtifacts))
}

// beginStage transitions the run into the stage's running state, resets
// progress to the stage baseline, and queues exactly one stage job under a
// fresh generation.
func (m *Manager) beginStage(run *domain.Run, q *changeSet, stage domain.Stage, message string) error {
	if err := m.transition(run, q, stage.RunningState(), message); err != nil {
		return err
	}
	run.Generation++
	m.recordProgress(run, q, domain.StageBaseline(stage), "", false)
	q.jobs = append(q.jobs, domain.StageJob{
		RunID:      run.ID,
		Stage:      stage,
		Generation: run.Generation,
	})
	return nil
}

// dispatchJob hands a stage job to the dispatcher. A dispatch failure fails
// the run rather than leaving it parked in a generation state nothing is
// working on.
func (m *Manager) dispatchJob(ctx context.Context, job domain.StageJob) {
	if m.dispatcher == nil {
		m.failRun(ctx, job.RunID, job.Generation, "no dispatcher configured")
		return
	}
	if err := m.dispatcher.Dispatch(ctx, job); err != nil {
		m.logger.Error("failed to dispatch stage job",
			zap.String("run_id", job.RunID),
			zap.String("stage", string(job.Stage)),
			zap.Error(err))
		m.failRun(ctx, job.RunID, job.Generation, fmt.Sprintf("failed to dispatch %s stage: %v", job.Stage, err))
	}
}

// publish sends queued events to the bus and appends them to the catalog
// ledger. Both are best-effort: a broadcast failure never fails a run.
func (m *Manager) publish(ctx context.Context, events []domain.Event) {
	for _, ev := range events {
		if err := m.bus.Publish(ctx, ports.TopicRunEvents, ev); err != nil {
			m.logger.Warn("failed to publish run event",
				zap.String("run_id", ev.RunID),
				zap.String("type", string(ev.Type)),
				zap.Error(err))
		}
		if err := m.catalog.AppendEvent(ctx, ev); err != nil {
			m.logger.Debug("failed to append event to ledger",
				zap.String("run_id", ev.RunID),
				zap.Error(err))
		}
	}
}

// ExecuteStage runs one dispatched stage job to completion. It is the
// dispatcher's entry point back into the orchestrator; the inline pool and
// the asynq worker both use it as their runner. Jobs whose generation or
// state no longer match the run are dropped without effect.
func (m *Manager) ExecuteStage(ctx context.Context, job domain.StageJob) error {
	h := m.handle(job.RunID)

	h.mu.Lock()
	run, err := m.store.Get(ctx, job.RunID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			m.handles.Delete(job.RunID)
		}
		h.mu.Unlock()
		if errors.Is(err, domain.ErrNotFound) {
			m.logger.Warn("dropping stage job for unknown run",
				zap.String("run_id", job.RunID),
				zap.String("stage", string(job.Stage)))
			return nil
		}
		return err
	}
	if run.Generation != job.Generation || run.State != job.Stage.RunningState() {
		if run.State.Terminal() {
			m.handles.Delete(job.RunID)
		}
		h.mu.Unlock()
		m.logger.Info("dropping stale stage job",
			zap.String("run_id", job.RunID),
			zap.String("stage", string(job.Stage)),
			zap.Int("job_generation", job.Generation),
			zap.Int("run_generation", run.Generation),
			zap.String("state", string(run.State)))
		m.metrics.RecordStageExecution(string(job.Stage), "stale", 0)
		return nil
	}

	executor, err := m.registry.ExecutorFor(run, job.Stage)
	if err != nil {
		h.mu.Unlock()
		m.failRun(ctx, job.RunID, job.Generation, err.Error())
		return err
	}

	stageCtx, cancel := context.WithTimeout(ctx, m.stageTimeout)
	h.cancel = cancel
	h.mu.Unlock()

	m.logger.Info("stage started",
		zap.String("run_id", job.RunID),
		zap.String("stage", string(job.Stage)),
		zap.Int("generation", job.Generation))

	reporter := &stageReporter{
		manager:    m,
		runID:      job.RunID,
		stage:      job.Stage,
		generation: job.Generation,
	}

	start := time.Now()
	execErr := runExecutor(stageCtx, executor, run, reporter)
	duration := time.Since(start)
	ctxErr := stageCtx.Err()
	cancel()

	h.mu.Lock()
	h.cancel = nil
	h.mu.Unlock()

	switch {
	case execErr == nil:
		m.metrics.RecordStageExecution(string(job.Stage), "success", duration)
		m.logger.Info("stage completed",
			zap.String("run_id", job.RunID),
			zap.String("stage", string(job.Stage)),
			zap.Duration("duration", duration))
		m.completeStage(ctx, job)
		return nil

	case errors.Is(execErr, errSuperseded), errors.Is(execErr, domain.ErrStaleWrite):
		m.metrics.RecordStageExecution(string(job.Stage), "superseded", duration)
		m.logger.Info("stage superseded",
			zap.String("run_id", job.RunID),
			zap.String("stage", string(job.Stage)))
		return nil

	case errors.Is(ctxErr, context.Canceled):
		// Cancelled from outside the stage: user cancel or process
		// shutdown. Either way the run is not failed here.
		m.metrics.RecordStageExecution(string(job.Stage), "cancelled", duration)
		m.logger.Info("stage cancelled",
			zap.String("run_id", job.RunID),
			zap.String("stage", string(job.Stage)))
		return nil

	default:
		status := "failure"
		reason := execErr.Error()
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			status = "timeout"
			reason = fmt.Sprintf("%s stage timed out after %s", job.Stage, m.stageTimeout)
		}
		m.metrics.RecordStageExecution(string(job.Stage), status, duration)
		m.logger.Error("stage failed",
			zap.String("run_id", job.RunID),
			zap.String("stage", string(job.Stage)),
			zap.Duration("duration", duration),
			zap.Error(execErr))
		m.failRun(ctx, job.RunID, job.Generation, reason)
		return execErr
	}
}

// runExecutor invokes the executor with panic containment. A panicking
// stage fails its run, never the process.
func runExecutor(ctx context.Context, executor ports.StageExecutor, run *domain.Run, reporter ports.StageReporter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()
	return executor.Execute(ctx, run, reporter)
}

// stageReporter is the ports.StageReporter handed to one stage invocation.
// Every report re-checks that the invocation still owns the run before
// mutating, so a stale or cancelled executor cannot write through it.
type stageReporter struct {
	manager    *Manager
	runID      string
	stage      domain.Stage
	generation int
}

// Report (ports.StageReporter interface)
func (r *stageReporter) Report(ctx context.Context, fraction float64, message string, mutate func(*domain.Artifacts)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.manager.update(ctx, r.runID, func(run *domain.Run, q *changeSet) error {
		if run.Generation != r.generation || run.State != r.stage.RunningState() {
			return errSuperseded
		}
		if mutate != nil {
			mutate(&run.Artifacts)
		}
		r.manager.recordProgress(run, q, fraction, message, mutate != nil)
		return nil
	})
}

// completeStage advances the run after a successful stage execution. The
// next edge depends on the stage, the run's review mode, and for qa the
// verdict in the report.
func (m *Manager) completeStage(ctx context.Context, job domain.StageJob) {
	err := m.update(ctx, job.RunID, func(run *domain.Run, q *changeSet) error {
		if run.Generation != job.Generation || run.State != job.Stage.RunningState() {
			return errSuperseded
		}

		switch job.Stage {
		case domain.StagePlot:
			if run.Spec.ReviewMode {
				if err := m.transition(run, q, domain.StatePlotReview, "plot ready for review"); err != nil {
					return err
				}
				m.recordProgress(run, q, domain.ProgressPlotReview, "", false)
				return nil
			}
			return m.beginStage(run, q, domain.StageAssets, "asset generation started")

		case domain.StageAssets:
			if run.Spec.ReviewMode {
				if err := m.transition(run, q, domain.StateAssetReview, "assets ready for review"); err != nil {
					return err
				}
				m.recordProgress(run, q, domain.ProgressAssetReview, "", false)
				return nil
			}
			return m.beginStage(run, q, domain.StageRender, "rendering started")

		case domain.StageRender:
			return m.beginStage(run, q, domain.StageQA, "qa checks started")

		case domain.StageQA:
			return m.resolveQA(run, q)
		}
		return fmt.Errorf("unknown stage %q", job.Stage)
	})
	if err != nil && !errors.Is(err, errSuperseded) && !errors.Is(err, domain.ErrStaleWrite) {
		m.logger.Error("failed to advance run after stage",
			zap.String("run_id", job.RunID),
			zap.String("stage", string(job.Stage)),
			zap.Error(err))
		if !errors.Is(err, domain.ErrInvalidTransition) {
			m.failRun(ctx, job.RunID, job.Generation, err.Error())
		}
	}
}

// resolveQA settles the qa verdict: pass ends the run, fail consumes one
// retry (discarding plot and assets for a fresh attempt) until the retry
// budget is exhausted.
func (m *Manager) resolveQA(run *domain.Run, q *changeSet) error {
	report := run.Artifacts.QAReport
	if report == nil {
		return fmt.Errorf("qa stage produced no report")
	}

	if report.Passed {
		if err := m.transition(run, q, domain.StateEnd, "run complete"); err != nil {
			return err
		}
		m.recordProgress(run, q, domain.ProgressEnd, "", true)
		m.metrics.RecordRunFinished("success", time.Since(run.CreatedAt))
		return nil
	}

	if run.Artifacts.QARetryCount < m.qaMaxRetries {
		run.Artifacts.QARetryCount++
		run.Artifacts.Plot = nil
		run.Artifacts.Scenes = nil
		run.Artifacts.BGM = nil
		run.Artifacts.VideoURL = ""
		run.Artifacts.ThumbnailURL = ""
		message := fmt.Sprintf("qa checks failed, regenerating (attempt %d of %d)",
			run.Artifacts.QARetryCount, m.qaMaxRetries)
		return m.beginStage(run, q, domain.StagePlot, message)
	}

	if err := m.transition(run, q, domain.StateFailed, "run failed: qa checks failed after retry"); err != nil {
		return err
	}
	m.metrics.RecordRunFinished("failed", time.Since(run.CreatedAt))
	return nil
}

// failRun forces the run to FAILED with the reason in its log. A negative
// generation skips the staleness check. Runs already terminal, or re-
// dispatched since, are left alone.
func (m *Manager) failRun(ctx context.Context, runID string, generation int, reason string) {
	err := m.update(ctx, runID, func(run *domain.Run, q *changeSet) error {
		if generation >= 0 && run.Generation != generation {
			return errSuperseded
		}
		if run.State.Terminal() {
			return errSuperseded
		}
		if err := m.transition(run, q, domain.StateFailed, "run failed: "+reason); err != nil {
			return err
		}
		m.metrics.RecordRunFinished("failed", time.Since(run.CreatedAt))
		return nil
	})
	if err != nil && !errors.Is(err, errSuperseded) && !errors.Is(err, domain.ErrNotFound) &&
		!errors.Is(err, domain.ErrStaleWrite) {
		m.logger.Error("failed to mark run failed",
			zap.String("run_id", runID),
			zap.Error(err))
	}
}
