package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
)

// Manager owns the run lifecycle: creation, stage scheduling, checkpoint
// resolution, cancellation, deletion. All mutations of one run go through
// its per-run lock; see update in engine.go.
type Manager struct {
	store     ports.RunStore
	catalog   ports.RunCatalog
	bus       ports.EventBus
	media     ports.MediaStore
	registry  ports.ExecutorRegistry
	metrics   ports.MetricsCollector
	validator *Validator
	logger    *zap.Logger

	// dispatcher is injected after construction: the inline pool needs the
	// manager's ExecuteStage as its runner, so one of the two is built first.
	dispatcher ports.Dispatcher

	stageTimeout time.Duration
	qaMaxRetries int

	handles sync.Map // map[string]*runHandle
	active  atomic.Int64
}

// NewManager creates a new run manager
func NewManager(
	store ports.RunStore,
	catalog ports.RunCatalog,
	bus ports.EventBus,
	media ports.MediaStore,
	registry ports.ExecutorRegistry,
	metrics ports.MetricsCollector,
	validator *Validator,
	logger *zap.Logger,
	stageTimeout time.Duration,
	qaMaxRetries int,
) *Manager {
	if stageTimeout <= 0 {
		stageTimeout = 10 * time.Minute
	}
	if qaMaxRetries < 0 {
		qaMaxRetries = 0
	}
	return &Manager{
		store:        store,
		catalog:      catalog,
		bus:          bus,
		media:        media,
		registry:     registry,
		metrics:      metrics,
		validator:    validator,
		logger:       logger,
		stageTimeout: stageTimeout,
		qaMaxRetries: qaMaxRetries,
	}
}

// SetDispatcher injects the stage dispatcher. Called once during wiring,
// before the manager receives traffic.
func (m *Manager) SetDispatcher(d ports.Dispatcher) {
	m.dispatcher = d
}

// Ready reports whether the manager is fully wired and able to run stages.
func (m *Manager) Ready() bool {
	return m.dispatcher != nil
}

// ActiveRuns returns the number of non-terminal runs this process has
// observed.
func (m *Manager) ActiveRuns() int {
	return int(m.active.Load())
}

// CreateRun validates the spec, persists a new run, and starts the
// pipeline. The returned run has already entered PLOT_GENERATION; the stage
// itself executes asynchronously on the dispatcher.
func (m *Manager) CreateRun(ctx context.Context, spec domain.RunSpec, owner string) (*domain.Run, error) {
	m.validator.Normalize(&spec)
	if err := m.validator.Validate(&spec); err != nil {
		m.logger.Warn("run spec rejected", zap.Error(err))
		return nil, err
	}

	now := time.Now()
	run := &domain.Run{
		ID:        uuid.New().String(),
		Owner:     owner,
		Spec:      spec,
		State:     domain.StateIdle,
		Progress:  domain.ProgressIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	run.Artifacts.LayoutConfig = domain.DefaultLayoutConfig().Merge(spec.Layout)
	run.AppendLog("run created")

	if err := m.store.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}
	if err := m.catalog.SaveSummary(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to catalog run: %w", err)
	}

	m.metrics.RecordRunCreated(string(spec.Mode))
	m.active.Add(1)
	m.metrics.SetActiveRuns(int(m.active.Load()))
	m.logger.Info("run created",
		zap.String("run_id", run.ID),
		zap.String("mode", string(spec.Mode)),
		zap.Bool("review_mode", spec.ReviewMode),
		zap.Bool("owned", run.Owned()))

	if err := m.update(ctx, run.ID, func(run *domain.Run, q *changeSet) error {
		return m.beginStage(run, q, domain.StagePlot, "plot generation started")
	}); err != nil {
		return nil, err
	}

	return m.store.Get(ctx, run.ID)
}

// GetRun returns a point-in-time snapshot of the run.
func (m *Manager) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	return m.store.Get(ctx, runID)
}

// ListRuns returns the catalog summaries owned by the identity, newest
// first.
func (m *Manager) ListRuns(ctx context.Context, owner string) ([]ports.RunSummary, error) {
	if owner == "" {
		return nil, domain.ErrUnauthorized
	}
	return m.catalog.ListByOwner(ctx, owner)
}

// DeleteRun removes the run record and its catalog rows, aborting the
// active stage execution if one is running. Owned runs are deletable only
// by their owner; the catalog row decides ownership once the hot record has
// expired.
func (m *Manager) DeleteRun(ctx context.Context, runID, identity string) error {
	h := m.handle(runID)
	h.mu.Lock()

	run, err := m.store.Get(ctx, runID)
	switch {
	case err == nil:
		if !run.OwnedBy(identity) {
			h.mu.Unlock()
			return domain.ErrUnauthorized
		}
	case errors.Is(err, domain.ErrNotFound):
		summary, serr := m.catalog.Summary(ctx, runID)
		if serr != nil {
			h.mu.Unlock()
			return serr
		}
		if summary.Owner != "" && summary.Owner != identity {
			h.mu.Unlock()
			return domain.ErrUnauthorized
		}
		run = nil
	default:
		h.mu.Unlock()
		return err
	}

	if cancel := h.cancel; cancel != nil {
		h.cancel = nil
		cancel()
	}

	if err := m.store.Delete(ctx, runID); err != nil {
		h.mu.Unlock()
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if err := m.catalog.Delete(ctx, runID); err != nil {
		h.mu.Unlock()
		return fmt.Errorf("failed to delete catalog rows: %w", err)
	}
	h.mu.Unlock()

	if run != nil && !run.State.Terminal() {
		m.active.Add(-1)
		m.metrics.SetActiveRuns(int(m.active.Load()))
	}
	m.handles.Delete(runID)
	m.logger.Info("run deleted", zap.String("run_id", runID))
	return nil
}

// Cancel moves the run to CANCELLED from any non-terminal state and aborts
// its active stage execution.
func (m *Manager) Cancel(ctx context.Context, runID, identity string) error {
	err := m.update(ctx, runID, func(run *domain.Run, q *changeSet) error {
		if !run.OwnedBy(identity) {
			return domain.ErrUnauthorized
		}
		if run.State.Terminal() {
			return fmt.Errorf("%w: run is %s", domain.ErrInvalidState, run.State)
		}
		if err := m.transition(run, q, domain.StateCancelled, "run cancelled"); err != nil {
			return err
		}
		m.metrics.RecordRunFinished("cancelled", time.Since(run.CreatedAt))
		return nil
	})
	// The terminal write inside update cancelled any in-flight stage and
	// released the run's handle.
	return err
}

// Plot returns the plot artifact, or NotReady before the plot stage has
// produced one.
func (m *Manager) Plot(ctx context.Context, runID string) (*domain.Plot, error) {
	run, err := m.store.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Artifacts.Plot == nil {
		return nil, fmt.Errorf("%w: plot", domain.ErrNotReady)
	}
	return run.Artifacts.Plot, nil
}

// Assets returns the scene assets and bgm produced so far. NotReady until
// the asset stage has produced at least one object; partial results are
// visible while the stage runs.
func (m *Manager) Assets(ctx context.Context, runID string) ([]domain.SceneAsset, *domain.BGMAsset, error) {
	run, err := m.store.Get(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	if len(run.Artifacts.Scenes) == 0 && run.Artifacts.BGM == nil {
		return nil, nil, fmt.Errorf("%w: assets", domain.ErrNotReady)
	}
	return run.Artifacts.Scenes, run.Artifacts.BGM, nil
}

// Layout returns the current layout config and the plot title it renders
// with. NotReady until the run has cleared asset review: the layout is only
// meaningful once the scene assets it composes are settled.
func (m *Manager) Layout(ctx context.Context, runID string) (*domain.LayoutConfig, string, error) {
	run, err := m.store.Get(ctx, runID)
	if err != nil {
		return nil, "", err
	}
	if run.Artifacts.Plot == nil || !layoutReady(run.State) {
		return nil, "", fmt.Errorf("%w: layout", domain.ErrNotReady)
	}
	layout := run.Artifacts.LayoutConfig
	if layout == nil {
		layout = domain.DefaultLayoutConfig()
	}
	return layout, run.Artifacts.Plot.Title, nil
}

// layoutReady reports whether the run has advanced past asset review, the
// point from which the layout checkpoint and every later stage render with
// a settled asset set.
func layoutReady(state domain.State) bool {
	switch state {
	case domain.StateLayoutReview, domain.StateRendering, domain.StateQA, domain.StateEnd:
		return true
	}
	return false
}

// PlotConfirm is the resolved payload of a plot checkpoint confirmation.
type PlotConfirm struct {
	Edited bool
	Plot   *domain.Plot
}

// ConfirmPlot resolves the plot checkpoint and releases the run into asset
// generation. An edited confirm replaces the plot artifact in the same
// write that releases the gate, so a reader never observes the new plot
// with the old state or the other way around.
func (m *Manager) ConfirmPlot(ctx context.Context, runID, identity string, confirm PlotConfirm) error {
	if confirm.Edited {
		if err := m.validator.ValidatePlot(confirm.Plot); err != nil {
			return err
		}
	}
	return m.update(ctx, runID, func(run *domain.Run, q *changeSet) error {
		if !run.OwnedBy(identity) {
			return domain.ErrUnauthorized
		}
		if run.State != domain.StatePlotReview {
			return fmt.Errorf("%w: plot confirm requires PLOT_REVIEW, run is %s", domain.ErrInvalidState, run.State)
		}

		action := "confirm"
		if confirm.Edited {
			run.Artifacts.Plot = confirm.Plot.Clone()
			run.AppendLog("plot updated from review")
			action = "confirm_edited"
		}
		m.metrics.RecordCheckpointResolution("plot", action)
		return m.beginStage(run, q, domain.StageAssets, "plot confirmed, asset generation started")
	})
}

// RegeneratePlot discards the plot artifact and re-runs the plot stage.
// Allowed while parked at the plot checkpoint and as the recovery edge out
// of FAILED.
func (m *Manager) RegeneratePlot(ctx context.Context, runID, identity string) error {
	return m.update(ctx, runID, func(run *domain.Run, q *changeSet) error {
		if !run.OwnedBy(identity) {
			return domain.ErrUnauthorized
		}
		if run.State != domain.StatePlotReview && run.State != domain.StateFailed {
			return fmt.Errorf("%w: plot regenerate requires PLOT_REVIEW or FAILED, run is %s", domain.ErrInvalidState, run.State)
		}

		run.Artifacts.Plot = nil
		m.metrics.RecordCheckpointResolution("plot", "regenerate")
		return m.beginStage(run, q, domain.StagePlot, "plot regeneration started")
	})
}

// ConfirmAssets releases the asset checkpoint into layout review.
func (m *Manager) ConfirmAssets(ctx context.Context, runID, identity string) error {
	return m.update(ctx, runID, func(run *domain.Run, q *changeSet) error {
		if !run.OwnedBy(identity) {
			return domain.ErrUnauthorized
		}
		if run.State != domain.StateAssetReview {
			return fmt.Errorf("%w: asset confirm requires ASSET_REVIEW, run is %s", domain.ErrInvalidState, run.State)
		}

		m.metrics.RecordCheckpointResolution("assets", "confirm")
		if err := m.transition(run, q, domain.StateLayoutReview, "assets confirmed, awaiting layout review"); err != nil {
			return err
		}
		m.recordProgress(run, q, domain.ProgressLayoutReady, "", false)
		return nil
	})
}

// RegenerateSceneImage replaces one scene's image object while the run is
// parked at an asset-editing checkpoint. Only that scene's URL (and prompt,
// when one is supplied) changes; everything else stays untouched and no
// transition happens. Returns the new image URL.
func (m *Manager) RegenerateSceneImage(ctx context.Context, runID, identity, sceneID, prompt string) (string, error) {
	var url string
	err := m.update(ctx, runID, func(run *domain.Run, q *changeSet) error {
		if !run.OwnedBy(identity) {
			return domain.ErrUnauthorized
		}
		if run.State != domain.StateAssetReview && run.State != domain.StateLayoutReview {
			return fmt.Errorf("%w: image regenerate requires ASSET_REVIEW or LAYOUT_REVIEW, run is %s", domain.ErrInvalidState, run.State)
		}
		asset := run.Artifacts.SceneAssetByID(sceneID)
		if asset == nil {
			return fmt.Errorf("%w: scene %s", domain.ErrNotFound, sceneID)
		}

		if prompt != "" {
			asset.ImagePrompt = prompt
		}
		gen, err := m.registry.AssetGeneratorFor(run)
		if err != nil {
			return err
		}
		data, mime, err := gen.SceneImage(ctx, run, asset.ImagePrompt)
		if err != nil {
			return fmt.Errorf("failed to generate scene image: %w", err)
		}
		// Fresh key per regeneration so cached URLs never serve the old image.
		key := fmt.Sprintf("%s/scene-%s-r%d.png", run.ID, sceneID, run.Seq+1)
		newURL, err := m.media.Put(ctx, key, data, mime)
		if err != nil {
			return fmt.Errorf("failed to store scene image: %w", err)
		}
		asset.ImageURL = newURL
		url = newURL

		m.metrics.RecordCheckpointResolution("assets", "regenerate_image")
		m.recordProgress(run, q, run.Progress, fmt.Sprintf("scene %s image regenerated", sceneID), true)
		return nil
	})
	return url, err
}

// RegenerateBGM replaces the background music object, optionally with a new
// prompt. Allowed at the same checkpoints as scene-image regeneration.
// Returns the new audio URL.
func (m *Manager) RegenerateBGM(ctx context.Context, runID, identity, prompt string) (string, error) {
	var url string
	err := m.update(ctx, runID, func(run *domain.Run, q *changeSet) error {
		if !run.OwnedBy(identity) {
			return domain.ErrUnauthorized
		}
		if run.State != domain.StateAssetReview && run.State != domain.StateLayoutReview {
			return fmt.Errorf("%w: bgm regenerate requires ASSET_REVIEW or LAYOUT_REVIEW, run is %s", domain.ErrInvalidState, run.State)
		}
		if run.Artifacts.BGM == nil {
			return fmt.Errorf("%w: bgm", domain.ErrNotReady)
		}

		if prompt != "" {
			run.Artifacts.BGM.Prompt = prompt
		}
		gen, err := m.registry.AssetGeneratorFor(run)
		if err != nil {
			return err
		}
		data, mime, err := gen.BGMTrack(ctx, run, run.Artifacts.BGM.Prompt)
		if err != nil {
			return fmt.Errorf("failed to generate bgm: %w", err)
		}
		key := fmt.Sprintf("%s/bgm-r%d.wav", run.ID, run.Seq+1)
		newURL, err := m.media.Put(ctx, key, data, mime)
		if err != nil {
			return fmt.Errorf("failed to store bgm: %w", err)
		}
		run.Artifacts.BGM.AudioURL = newURL
		url = newURL

		m.metrics.RecordCheckpointResolution("assets", "regenerate_bgm")
		m.recordProgress(run, q, run.Progress, "bgm regenerated", true)
		return nil
	})
	return url, err
}

// LayoutConfirm is the resolved payload of a layout checkpoint confirmation.
type LayoutConfirm struct {
	Edited bool
	Layout *domain.LayoutConfig
	Title  string
}

// ConfirmLayout resolves the layout checkpoint and releases the run into
// rendering. Edits overlay the stored layout config; a title edit renames
// the plot.
func (m *Manager) ConfirmLayout(ctx context.Context, runID, identity string, confirm LayoutConfirm) error {
	return m.update(ctx, runID, func(run *domain.Run, q *changeSet) error {
		if !run.OwnedBy(identity) {
			return domain.ErrUnauthorized
		}
		if run.State != domain.StateLayoutReview {
			return fmt.Errorf("%w: layout confirm requires LAYOUT_REVIEW, run is %s", domain.ErrInvalidState, run.State)
		}

		action := "confirm"
		if confirm.Edited {
			if confirm.Layout != nil {
				base := run.Artifacts.LayoutConfig
				if base == nil {
					base = domain.DefaultLayoutConfig()
				}
				run.Artifacts.LayoutConfig = base.Merge(confirm.Layout)
			}
			if confirm.Title != "" && run.Artifacts.Plot != nil {
				run.Artifacts.Plot.Title = confirm.Title
			}
			run.AppendLog("layout updated from review")
			action = "confirm_edited"
		}
		m.metrics.RecordCheckpointResolution("layout", action)
		return m.beginStage(run, q, domain.StageRender, "layout confirmed, rendering started")
	})
}

// RegenerateLayout discards the generated assets and re-runs the asset
// stage. Allowed from either asset-editing checkpoint; under review mode
// the fresh assets park at ASSET_REVIEW again.
func (m *Manager) RegenerateLayout(ctx context.Context, runID, identity string) error {
	return m.update(ctx, runID, func(run *domain.Run, q *changeSet) error {
		if !run.OwnedBy(identity) {
			return domain.ErrUnauthorized
		}
		if run.State != domain.StateAssetReview && run.State != domain.StateLayoutReview {
			return fmt.Errorf("%w: layout regenerate requires ASSET_REVIEW or LAYOUT_REVIEW, run is %s", domain.ErrInvalidState, run.State)
		}

		run.Artifacts.Scenes = nil
		run.Artifacts.BGM = nil
		m.metrics.RecordCheckpointResolution("layout", "regenerate")
		return m.beginStage(run, q, domain.StageAssets, "asset regeneration started")
	})
}

// Shutdown aborts every active stage execution. Runs keep their state; in
// distributed mode asynq redelivers unfinished jobs after a restart.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down run manager")

	m.handles.Range(func(_, value interface{}) bool {
		h := value.(*runHandle)
		h.mu.Lock()
		if h.cancel != nil {
			h.cancel()
			h.cancel = nil
		}
		h.mu.Unlock()
		return true
	})

	m.logger.Info("run manager shut down complete")
	return nil
}
