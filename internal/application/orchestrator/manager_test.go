package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/application/stages"
	"github.com/aescanero/reelgen/internal/application/stages/stub"
	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
	catalogmem "github.com/aescanero/reelgen/pkg/adapters/catalog/memory"
	eventsmem "github.com/aescanero/reelgen/pkg/adapters/events/memory"
	storagemem "github.com/aescanero/reelgen/pkg/adapters/storage/memory"
)

// fakeMedia keeps objects in memory and returns mem:// URLs.
type fakeMedia struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{objects: make(map[string][]byte)}
}

func (f *fakeMedia) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	return "mem://" + key, nil
}

func (f *fakeMedia) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// syncDispatcher executes each job inline, so every pipeline step the
// operation schedules completes before the operation returns.
type syncDispatcher struct {
	manager *Manager
}

func (d *syncDispatcher) Dispatch(ctx context.Context, job domain.StageJob) error {
	d.manager.ExecuteStage(ctx, job)
	return nil
}

// captureDispatcher records jobs without executing them.
type captureDispatcher struct {
	mu   sync.Mutex
	jobs []domain.StageJob
}

func (d *captureDispatcher) Dispatch(ctx context.Context, job domain.StageJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *captureDispatcher) all() []domain.StageJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.StageJob(nil), d.jobs...)
}

// verdictQAExecutor writes a fixed-verdict report.
type verdictQAExecutor struct {
	passed bool
}

func (e *verdictQAExecutor) Stage() domain.Stage { return domain.StageQA }

func (e *verdictQAExecutor) Execute(ctx context.Context, run *domain.Run, reporter ports.StageReporter) error {
	return reporter.Report(ctx, domain.ProgressQADone, "qa verdict", func(a *domain.Artifacts) {
		a.QAReport = &domain.QAReport{Passed: e.passed}
	})
}

// failNTimesExecutor fails its first n executions, then delegates.
type failNTimesExecutor struct {
	n     int
	calls int
	inner ports.StageExecutor
}

func (e *failNTimesExecutor) Stage() domain.Stage { return e.inner.Stage() }

func (e *failNTimesExecutor) Execute(ctx context.Context, run *domain.Run, reporter ports.StageReporter) error {
	e.calls++
	if e.calls <= e.n {
		return fmt.Errorf("transient failure %d", e.calls)
	}
	return e.inner.Execute(ctx, run, reporter)
}

func stubPlot() ports.StageExecutor { return stub.NewPlotExecutor(zap.NewNop()) }

type panicExecutor struct{}

func (e *panicExecutor) Stage() domain.Stage { return domain.StagePlot }

func (e *panicExecutor) Execute(ctx context.Context, run *domain.Run, reporter ports.StageReporter) error {
	panic("plot exploded")
}

type envOptions struct {
	plot      ports.StageExecutor
	qa        ports.StageExecutor
	qaRetries int
	timeout   time.Duration
	capture   bool

	// wrapStore interposes on the run store the manager sees, leaving
	// e.store pointing at the backing memory store.
	wrapStore func(ports.RunStore) ports.RunStore
}

type env struct {
	manager *Manager
	store   *storagemem.RunStore
	catalog *catalogmem.Catalog
	bus     *eventsmem.EventBus
	media   *fakeMedia
	capture *captureDispatcher

	mu     sync.Mutex
	events []domain.Event
}

func newEnv(t *testing.T, opt envOptions) *env {
	t.Helper()

	logger := zap.NewNop()
	store := storagemem.NewRunStore()
	catalog := catalogmem.NewCatalog()
	bus := eventsmem.NewEventBus()
	media := newFakeMedia()

	plot := opt.plot
	if plot == nil {
		plot = stub.NewPlotExecutor(logger)
	}
	qa := opt.qa
	if qa == nil {
		qa = stub.NewQAExecutor(logger)
	}
	registry := stages.NewRegistry(
		plot,
		nil,
		stub.NewAssetsExecutor(media, logger),
		stub.NewRenderExecutor(media, logger),
		qa,
	)

	timeout := opt.timeout
	if timeout == 0 {
		timeout = time.Minute
	}
	runStore := ports.RunStore(store)
	if opt.wrapStore != nil {
		runStore = opt.wrapStore(store)
	}
	manager := NewManager(runStore, catalog, bus, media, registry,
		ports.NopMetrics{}, NewValidator(), logger, timeout, opt.qaRetries)

	e := &env{manager: manager, store: store, catalog: catalog, bus: bus, media: media}

	if err := bus.Subscribe(context.Background(), ports.TopicRunEvents, func(ctx context.Context, ev domain.Event) error {
		e.mu.Lock()
		e.events = append(e.events, ev)
		e.mu.Unlock()
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if opt.capture {
		e.capture = &captureDispatcher{}
		manager.SetDispatcher(e.capture)
	} else {
		manager.SetDispatcher(&syncDispatcher{manager: manager})
	}
	return e
}

func (e *env) runEvents(runID string) []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.Event
	for _, ev := range e.events {
		if ev.RunID == runID {
			out = append(out, ev)
		}
	}
	return out
}

func (e *env) create(t *testing.T, spec domain.RunSpec, owner string) *domain.Run {
	t.Helper()
	run, err := e.manager.CreateRun(context.Background(), spec, owner)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	return run
}

func (e *env) get(t *testing.T, runID string) *domain.Run {
	t.Helper()
	run, err := e.manager.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	return run
}

func autoSpec() domain.RunSpec {
	return domain.RunSpec{
		Mode:   domain.ModeGeneral,
		Prompt: "a cat travelling through space",
	}
}

func reviewSpec() domain.RunSpec {
	spec := autoSpec()
	spec.ReviewMode = true
	return spec
}

func hasLog(run *domain.Run, substr string) bool {
	for _, line := range run.Logs {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func TestAutoRunCompletes(t *testing.T) {
	e := newEnv(t, envOptions{})

	run := e.create(t, autoSpec(), "")

	if run.State != domain.StateEnd {
		t.Fatalf("state = %s, want END", run.State)
	}
	if run.Progress != domain.ProgressEnd {
		t.Errorf("progress = %v, want 1.0", run.Progress)
	}
	if run.Artifacts.VideoURL == "" || run.Artifacts.ThumbnailURL == "" {
		t.Errorf("missing render outputs: video=%q thumbnail=%q",
			run.Artifacts.VideoURL, run.Artifacts.ThumbnailURL)
	}
	if run.Artifacts.QAReport == nil || !run.Artifacts.QAReport.Passed {
		t.Errorf("qa report = %+v, want passed", run.Artifacts.QAReport)
	}
	if len(run.Artifacts.Scenes) != 3 {
		t.Errorf("scenes = %d, want 3 (default cuts)", len(run.Artifacts.Scenes))
	}
	for _, asset := range run.Artifacts.Scenes {
		if asset.ImageURL == "" || asset.VoiceURL == "" {
			t.Errorf("scene %s missing media: %+v", asset.SceneID, asset)
		}
	}

	// 3 images + bgm + 3 voices + video + thumbnail
	if got := e.media.count(); got != 9 {
		t.Errorf("media objects = %d, want 9", got)
	}

	if !hasLog(run, "run created") || !hasLog(run, "run complete") {
		t.Errorf("lifecycle log lines missing: %v", run.Logs)
	}
}

func TestRunEventsOrdered(t *testing.T) {
	e := newEnv(t, envOptions{})

	run := e.create(t, autoSpec(), "")

	events := e.runEvents(run.ID)
	if len(events) == 0 {
		t.Fatal("no events published")
	}

	var last uint64
	for i, ev := range events {
		if ev.Seq <= last {
			t.Fatalf("event %d seq %d not increasing (prev %d)", i, ev.Seq, last)
		}
		last = ev.Seq
	}

	first := events[0]
	if first.Type != domain.EventStateChange || first.State != domain.StatePlotGeneration {
		t.Errorf("first event = %+v, want state_change to PLOT_GENERATION", first)
	}

	final := events[len(events)-1]
	if final.Type != domain.EventProgress || final.Progress == nil || *final.Progress != 1.0 {
		t.Errorf("final event = %+v, want progress 1.0", final)
	}
	if final.Artifacts == nil {
		t.Error("final progress event should carry artifacts")
	}
}

func TestReviewCheckpointFlow(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, reviewSpec(), "")
	if run.State != domain.StatePlotReview {
		t.Fatalf("state after create = %s, want PLOT_REVIEW", run.State)
	}
	if run.Progress != domain.ProgressPlotReview {
		t.Errorf("progress = %v, want %v", run.Progress, domain.ProgressPlotReview)
	}
	if run.Artifacts.Plot == nil {
		t.Fatal("no plot artifact at plot review")
	}

	if err := e.manager.ConfirmPlot(ctx, run.ID, "", PlotConfirm{}); err != nil {
		t.Fatalf("ConfirmPlot: %v", err)
	}
	run = e.get(t, run.ID)
	if run.State != domain.StateAssetReview {
		t.Fatalf("state after plot confirm = %s, want ASSET_REVIEW", run.State)
	}
	if run.Progress != domain.ProgressAssetReview {
		t.Errorf("progress = %v, want %v", run.Progress, domain.ProgressAssetReview)
	}

	if err := e.manager.ConfirmAssets(ctx, run.ID, ""); err != nil {
		t.Fatalf("ConfirmAssets: %v", err)
	}
	run = e.get(t, run.ID)
	if run.State != domain.StateLayoutReview {
		t.Fatalf("state after asset confirm = %s, want LAYOUT_REVIEW", run.State)
	}

	if err := e.manager.ConfirmLayout(ctx, run.ID, "", LayoutConfirm{}); err != nil {
		t.Fatalf("ConfirmLayout: %v", err)
	}
	run = e.get(t, run.ID)
	if run.State != domain.StateEnd {
		t.Fatalf("state after layout confirm = %s, want END", run.State)
	}
}

func TestConfirmOutsideReviewState(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, autoSpec(), "")

	before := e.get(t, run.ID)
	err := e.manager.ConfirmPlot(ctx, run.ID, "", PlotConfirm{})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("ConfirmPlot on END run: got %v, want ErrInvalidState", err)
	}
	after := e.get(t, run.ID)
	if !reflect.DeepEqual(before, after) {
		t.Error("rejected confirm mutated the run")
	}
}

func TestRepeatedConfirm(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, reviewSpec(), "")
	if err := e.manager.ConfirmPlot(ctx, run.ID, "", PlotConfirm{}); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	// The released run now parks at ASSET_REVIEW; a second plot confirm
	// must fail without effect.
	err := e.manager.ConfirmPlot(ctx, run.ID, "", PlotConfirm{})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second confirm: got %v, want ErrInvalidState", err)
	}
}

func TestConcurrentConfirmAndRegenerate(t *testing.T) {
	// Two checkpoint resolutions racing against the same parked run:
	// exactly one wins, the loser observes InvalidState, every time.
	for i := 0; i < 50; i++ {
		e := newEnv(t, envOptions{capture: true})
		ctx := context.Background()

		run := e.create(t, reviewSpec(), "")
		jobs := e.capture.all()
		if len(jobs) != 1 {
			t.Fatalf("captured jobs = %d, want 1", len(jobs))
		}
		if err := e.manager.ExecuteStage(ctx, jobs[0]); err != nil {
			t.Fatalf("plot stage: %v", err)
		}
		if got := e.get(t, run.ID).State; got != domain.StatePlotReview {
			t.Fatalf("state = %s, want PLOT_REVIEW", got)
		}

		var wg sync.WaitGroup
		var confirmErr, regenErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			confirmErr = e.manager.ConfirmPlot(ctx, run.ID, "", PlotConfirm{})
		}()
		go func() {
			defer wg.Done()
			regenErr = e.manager.RegeneratePlot(ctx, run.ID, "")
		}()
		wg.Wait()

		var winners int
		for _, err := range []error{confirmErr, regenErr} {
			switch {
			case err == nil:
				winners++
			case errors.Is(err, domain.ErrInvalidState):
			default:
				t.Fatalf("iteration %d: unexpected error %v", i, err)
			}
		}
		if winners != 1 {
			t.Fatalf("iteration %d: winners = %d (confirm=%v regenerate=%v), want exactly 1",
				i, winners, confirmErr, regenErr)
		}

		want := domain.StateAssetGeneration
		if regenErr == nil {
			want = domain.StatePlotGeneration
		}
		if got := e.get(t, run.ID).State; got != want {
			t.Errorf("iteration %d: state = %s, want %s", i, got, want)
		}
	}
}

func TestEditedPlotConfirm(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, reviewSpec(), "")

	edited := run.Artifacts.Plot.Clone()
	edited.Title = "Edited Title"
	edited.Scenes = edited.Scenes[:2]
	edited.Scenes[0].ImagePrompt = "a red spaceship"

	if err := e.manager.ConfirmPlot(ctx, run.ID, "", PlotConfirm{Edited: true, Plot: edited}); err != nil {
		t.Fatalf("edited confirm: %v", err)
	}

	run = e.get(t, run.ID)
	if run.Artifacts.Plot.Title != "Edited Title" {
		t.Errorf("title = %q, want edited title", run.Artifacts.Plot.Title)
	}
	if len(run.Artifacts.Scenes) != 2 {
		t.Errorf("assets generated for %d scenes, want 2 (edited plot)", len(run.Artifacts.Scenes))
	}
	if run.Artifacts.Scenes[0].SceneID != edited.Scenes[0].SceneID {
		t.Errorf("asset scene id %q does not match edited plot %q",
			run.Artifacts.Scenes[0].SceneID, edited.Scenes[0].SceneID)
	}
}

func TestEditedPlotConfirmValidated(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, reviewSpec(), "")

	err := e.manager.ConfirmPlot(ctx, run.ID, "", PlotConfirm{Edited: true, Plot: &domain.Plot{}})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty edited plot: got %v, want ErrValidation", err)
	}

	run = e.get(t, run.ID)
	if run.State != domain.StatePlotReview {
		t.Errorf("state = %s, rejected edit must not release the gate", run.State)
	}
}

func TestRegeneratePlot(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, reviewSpec(), "")
	firstGen := run.Generation
	firstSceneID := run.Artifacts.Plot.Scenes[0].SceneID

	if err := e.manager.RegeneratePlot(ctx, run.ID, ""); err != nil {
		t.Fatalf("RegeneratePlot: %v", err)
	}

	run = e.get(t, run.ID)
	if run.State != domain.StatePlotReview {
		t.Fatalf("state = %s, want PLOT_REVIEW after regeneration", run.State)
	}
	if run.Generation <= firstGen {
		t.Errorf("generation = %d, want > %d", run.Generation, firstGen)
	}
	newSceneID := run.Artifacts.Plot.Scenes[0].SceneID
	if newSceneID == firstSceneID {
		t.Errorf("regenerated scene id %q collides with the discarded plot", newSceneID)
	}
}

func TestRegenerateSceneImage(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, reviewSpec(), "")
	if err := e.manager.ConfirmPlot(ctx, run.ID, "", PlotConfirm{}); err != nil {
		t.Fatalf("ConfirmPlot: %v", err)
	}
	run = e.get(t, run.ID)

	target := run.Artifacts.Scenes[0]
	oldURL := target.ImageURL
	otherURL := run.Artifacts.Scenes[1].ImageURL

	newURL, err := e.manager.RegenerateSceneImage(ctx, run.ID, "", target.SceneID, "a red spaceship")
	if err != nil {
		t.Fatalf("RegenerateSceneImage: %v", err)
	}
	if newURL == oldURL {
		t.Error("image URL did not change")
	}

	run = e.get(t, run.ID)
	if run.Artifacts.Scenes[0].ImageURL != newURL {
		t.Errorf("stored URL = %q, want %q", run.Artifacts.Scenes[0].ImageURL, newURL)
	}
	if run.Artifacts.Scenes[0].ImagePrompt != "a red spaceship" {
		t.Errorf("prompt not updated: %q", run.Artifacts.Scenes[0].ImagePrompt)
	}
	if run.Artifacts.Scenes[1].ImageURL != otherURL {
		t.Error("untouched scene changed")
	}
	if run.State != domain.StateAssetReview {
		t.Errorf("state = %s, regeneration must not transition", run.State)
	}

	if _, err := e.manager.RegenerateSceneImage(ctx, run.ID, "", "nope", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown scene: got %v, want ErrNotFound", err)
	}
}

func TestRegenerateSceneImageAtLayoutReview(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, reviewSpec(), "")
	if err := e.manager.ConfirmPlot(ctx, run.ID, "", PlotConfirm{}); err != nil {
		t.Fatalf("ConfirmPlot: %v", err)
	}
	if err := e.manager.ConfirmAssets(ctx, run.ID, ""); err != nil {
		t.Fatalf("ConfirmAssets: %v", err)
	}
	run = e.get(t, run.ID)

	// Still allowed while parked at the layout checkpoint.
	sceneID := run.Artifacts.Scenes[0].SceneID
	if _, err := e.manager.RegenerateSceneImage(ctx, run.ID, "", sceneID, ""); err != nil {
		t.Fatalf("RegenerateSceneImage at LAYOUT_REVIEW: %v", err)
	}
	run = e.get(t, run.ID)
	if run.State != domain.StateLayoutReview {
		t.Fatalf("state = %s, regeneration must not transition", run.State)
	}

	// Layout confirm seals the assets; the run completes and per-asset
	// edits stop being accepted.
	if err := e.manager.ConfirmLayout(ctx, run.ID, "", LayoutConfirm{}); err != nil {
		t.Fatalf("ConfirmLayout: %v", err)
	}
	if _, err := e.manager.RegenerateSceneImage(ctx, run.ID, "", sceneID, ""); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("regenerate after layout confirm: got %v, want ErrInvalidState", err)
	}
}

func TestRegenerateBGM(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, reviewSpec(), "")
	if err := e.manager.ConfirmPlot(ctx, run.ID, "", PlotConfirm{}); err != nil {
		t.Fatalf("ConfirmPlot: %v", err)
	}
	run = e.get(t, run.ID)
	oldURL := run.Artifacts.BGM.AudioURL

	newURL, err := e.manager.RegenerateBGM(ctx, run.ID, "", "upbeat synthwave")
	if err != nil {
		t.Fatalf("RegenerateBGM: %v", err)
	}
	if newURL == oldURL {
		t.Error("bgm URL did not change")
	}

	run = e.get(t, run.ID)
	if run.Artifacts.BGM.Prompt != "upbeat synthwave" {
		t.Errorf("bgm prompt = %q", run.Artifacts.BGM.Prompt)
	}
}

func TestRegenerateLayout(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, reviewSpec(), "")
	if err := e.manager.ConfirmPlot(ctx, run.ID, "", PlotConfirm{}); err != nil {
		t.Fatalf("ConfirmPlot: %v", err)
	}
	if err := e.manager.ConfirmAssets(ctx, run.ID, ""); err != nil {
		t.Fatalf("ConfirmAssets: %v", err)
	}

	if err := e.manager.RegenerateLayout(ctx, run.ID, ""); err != nil {
		t.Fatalf("RegenerateLayout: %v", err)
	}

	run = e.get(t, run.ID)
	if run.State != domain.StateAssetReview {
		t.Fatalf("state = %s, want ASSET_REVIEW after asset regeneration", run.State)
	}
}

func TestEditedLayoutConfirm(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, reviewSpec(), "")
	if err := e.manager.ConfirmPlot(ctx, run.ID, "", PlotConfirm{}); err != nil {
		t.Fatalf("ConfirmPlot: %v", err)
	}
	if err := e.manager.ConfirmAssets(ctx, run.ID, ""); err != nil {
		t.Fatalf("ConfirmAssets: %v", err)
	}

	confirm := LayoutConfirm{
		Edited: true,
		Layout: &domain.LayoutConfig{UseTitleBlock: true, TitleBGColor: "#000000"},
		Title:  "Final Title",
	}
	if err := e.manager.ConfirmLayout(ctx, run.ID, "", confirm); err != nil {
		t.Fatalf("ConfirmLayout: %v", err)
	}

	run = e.get(t, run.ID)
	if run.State != domain.StateEnd {
		t.Fatalf("state = %s, want END", run.State)
	}
	if run.Artifacts.LayoutConfig.TitleBGColor != "#000000" {
		t.Errorf("layout bg = %q, want edited color", run.Artifacts.LayoutConfig.TitleBGColor)
	}
	if run.Artifacts.LayoutConfig.TitleFont == "" {
		t.Error("unedited layout fields lost their defaults")
	}
	if run.Artifacts.Plot.Title != "Final Title" {
		t.Errorf("title = %q, want edited title", run.Artifacts.Plot.Title)
	}
}

func TestCancel(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, reviewSpec(), "")
	if err := e.manager.Cancel(ctx, run.ID, ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	run = e.get(t, run.ID)
	if run.State != domain.StateCancelled {
		t.Fatalf("state = %s, want CANCELLED", run.State)
	}

	if err := e.manager.Cancel(ctx, run.ID, ""); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("second cancel: got %v, want ErrInvalidState", err)
	}
	if err := e.manager.ConfirmPlot(ctx, run.ID, "", PlotConfirm{}); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("confirm after cancel: got %v, want ErrInvalidState", err)
	}
}

func TestArtifactGettersNotReady(t *testing.T) {
	e := newEnv(t, envOptions{capture: true})
	ctx := context.Background()

	run := e.create(t, autoSpec(), "")

	// With a capturing dispatcher the plot stage never ran, so every
	// artifact fetch is NotReady.
	if _, err := e.manager.Plot(ctx, run.ID); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("Plot: got %v, want ErrNotReady", err)
	}
	if _, _, err := e.manager.Assets(ctx, run.ID); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("Assets: got %v, want ErrNotReady", err)
	}
	if _, _, err := e.manager.Layout(ctx, run.ID); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("Layout: got %v, want ErrNotReady", err)
	}

	if _, err := e.manager.Plot(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown run: got %v, want ErrNotFound", err)
	}
}

func TestLayoutNotReadyUntilAssetsConfirmed(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, reviewSpec(), "")

	// Parked at PLOT_REVIEW: a plot exists, but the layout is withheld
	// until the assets it composes have settled.
	if _, _, err := e.manager.Layout(ctx, run.ID); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("Layout at PLOT_REVIEW: got %v, want ErrNotReady", err)
	}

	if err := e.manager.ConfirmPlot(ctx, run.ID, "", PlotConfirm{}); err != nil {
		t.Fatalf("ConfirmPlot: %v", err)
	}
	if got := e.get(t, run.ID).State; got != domain.StateAssetReview {
		t.Fatalf("state = %s, want ASSET_REVIEW", got)
	}
	if _, _, err := e.manager.Layout(ctx, run.ID); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("Layout at ASSET_REVIEW: got %v, want ErrNotReady", err)
	}

	if err := e.manager.ConfirmAssets(ctx, run.ID, ""); err != nil {
		t.Fatalf("ConfirmAssets: %v", err)
	}
	layout, title, err := e.manager.Layout(ctx, run.ID)
	if err != nil {
		t.Fatalf("Layout at LAYOUT_REVIEW: %v", err)
	}
	if layout == nil {
		t.Fatal("Layout returned no config")
	}
	if title == "" {
		t.Error("Layout returned empty title")
	}
}

func TestOwnership(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, reviewSpec(), "alice")

	if err := e.manager.ConfirmPlot(ctx, run.ID, "bob", PlotConfirm{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("foreign confirm: got %v, want ErrUnauthorized", err)
	}
	if err := e.manager.ConfirmPlot(ctx, run.ID, "", PlotConfirm{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("anonymous confirm: got %v, want ErrUnauthorized", err)
	}
	if err := e.manager.Cancel(ctx, run.ID, "bob"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("foreign cancel: got %v, want ErrUnauthorized", err)
	}

	if err := e.manager.ConfirmPlot(ctx, run.ID, "alice", PlotConfirm{}); err != nil {
		t.Fatalf("owner confirm: %v", err)
	}
}

func TestAnonymousRunMutableByAnyone(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, reviewSpec(), "")
	if err := e.manager.ConfirmPlot(ctx, run.ID, "someone-else", PlotConfirm{}); err != nil {
		t.Fatalf("confirm on anonymous run: %v", err)
	}
}

func TestListRuns(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	first := e.create(t, autoSpec(), "alice")
	time.Sleep(2 * time.Millisecond)
	second := e.create(t, autoSpec(), "alice")
	e.create(t, autoSpec(), "bob")

	summaries, err := e.manager.ListRuns(ctx, "alice")
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if summaries[0].RunID != second.ID || summaries[1].RunID != first.ID {
		t.Errorf("summaries not newest first: %s, %s", summaries[0].RunID, summaries[1].RunID)
	}
	if summaries[0].State != string(domain.StateEnd) {
		t.Errorf("summary state = %q, want END", summaries[0].State)
	}

	if _, err := e.manager.ListRuns(ctx, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("anonymous list: got %v, want ErrUnauthorized", err)
	}
}

func TestDeleteRun(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	run := e.create(t, autoSpec(), "alice")

	if err := e.manager.DeleteRun(ctx, run.ID, "bob"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("foreign delete: got %v, want ErrUnauthorized", err)
	}
	if err := e.manager.DeleteRun(ctx, run.ID, "alice"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}

	if _, err := e.manager.GetRun(ctx, run.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("run still readable after delete: %v", err)
	}
	summaries, err := e.manager.ListRuns(ctx, "alice")
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("catalog still lists %d runs after delete", len(summaries))
	}

	if err := e.manager.DeleteRun(ctx, run.ID, "alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}
