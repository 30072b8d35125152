package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aescanero/reelgen/internal/domain"
)

// RunStore is the hot-state store of run records. Save replaces the whole
// record atomically so a concurrent reader never observes a run mid-update.
// A store shared by multiple processes returns ErrStaleWrite for a save
// whose seq does not advance past the stored record, so a writer acting on
// an overwritten snapshot cannot clobber the newer revision.
type RunStore interface {
	Save(ctx context.Context, run *domain.Run) error
	Get(ctx context.Context, runID string) (*domain.Run, error)
	Delete(ctx context.Context, runID string) error
	List(ctx context.Context) ([]*domain.Run, error)
}

// RunSummary is one catalog row, the shape returned by run listings.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	Owner     string    `json:"owner,omitempty"`
	Mode      string    `json:"mode"`
	State     string    `json:"state"`
	Progress  float64   `json:"progress"`
	Title     string    `json:"title,omitempty"`
	VideoURL  string    `json:"video_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunCatalog is the durable ownership index and append-only event ledger.
// Summaries outlive the hot store's TTL; they exist until the owner deletes
// the run.
type RunCatalog interface {
	SaveSummary(ctx context.Context, run *domain.Run) error
	Summary(ctx context.Context, runID string) (RunSummary, error)
	ListByOwner(ctx context.Context, owner string) ([]RunSummary, error)
	Delete(ctx context.Context, runID string) error
	AppendEvent(ctx context.Context, event domain.Event) error
	Events(ctx context.Context, runID string, limit int) ([]domain.Event, error)
}

// EventHandler processes one event delivered by a bus subscription.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus carries run events from the orchestrator to subscribers, in
// process or across processes depending on the adapter.
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// TopicRunEvents is the bus topic every run event is published on. The
// Redis adapter maps it to the "reelgen:progress" channel.
const TopicRunEvents = "progress"

// MediaStore persists generated media objects and returns their public URL.
type MediaStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Dispatcher hands a stage job to whatever executes it: an in-process worker
// pool or a distributed queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, job domain.StageJob) error
}

// LLMClient generates a strict-JSON completion for a system/user prompt pair.
type LLMClient interface {
	GenerateJSON(ctx context.Context, system, prompt string) (json.RawMessage, error)
}

// StageReporter is the only write path a stage executor has. Report applies
// a progress update and optional artifact mutation under the run lock,
// persists the run, and publishes a progress event. A non-nil error means
// the run no longer accepts writes (cancelled, failed, or superseded) and
// the executor must stop.
type StageReporter interface {
	Report(ctx context.Context, fraction float64, message string, mutate func(*domain.Artifacts)) error
}

// StageExecutor performs the generation work of one pipeline stage. An
// error return is caught at the orchestrator boundary and fails the run.
type StageExecutor interface {
	Stage() domain.Stage
	Execute(ctx context.Context, run *domain.Run, reporter StageReporter) error
}

// AssetGenerator produces one replacement asset outside a full stage run.
// Checkpoint regeneration uses it for a single scene image or the bgm
// track, so the media provider stays behind the registry instead of being
// baked into the orchestrator.
type AssetGenerator interface {
	// SceneImage returns the image bytes and content type for one scene.
	SceneImage(ctx context.Context, run *domain.Run, prompt string) ([]byte, string, error)
	// BGMTrack returns the audio bytes and content type for the run's bgm.
	BGMTrack(ctx context.Context, run *domain.Run, prompt string) ([]byte, string, error)
}

// ExecutorRegistry resolves the executor for a stage, honoring per-run stub
// flags and configured providers.
type ExecutorRegistry interface {
	ExecutorFor(run *domain.Run, stage domain.Stage) (StageExecutor, error)
	AssetGeneratorFor(run *domain.Run) (AssetGenerator, error)
}

// MetricsCollector records orchestrator metrics.
type MetricsCollector interface {
	RecordRunCreated(mode string)
	RecordRunFinished(result string, duration time.Duration)
	RecordStageExecution(stage, status string, duration time.Duration)
	RecordCheckpointResolution(checkpoint, action string)
	SetActiveRuns(count int)
	SetWebsocketSubscribers(count int)
	SetComponentUp(component string, up bool)
}

// NopMetrics is a MetricsCollector that records nothing.
type NopMetrics struct{}

func (NopMetrics) RecordRunCreated(string)                            {}
func (NopMetrics) RecordRunFinished(string, time.Duration)            {}
func (NopMetrics) RecordStageExecution(string, string, time.Duration) {}
func (NopMetrics) RecordCheckpointResolution(string, string)          {}
func (NopMetrics) SetActiveRuns(int)                                  {}
func (NopMetrics) SetWebsocketSubscribers(int)                        {}
func (NopMetrics) SetComponentUp(string, bool)                        {}
