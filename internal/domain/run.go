package domain

import "time"

// State is a run's position in the generation pipeline
type State string

const (
	StateIdle            State = "IDLE"
	StatePlotGeneration  State = "PLOT_GENERATION"
	StatePlotReview      State = "PLOT_REVIEW"
	StateAssetGeneration State = "ASSET_GENERATION"
	StateAssetReview     State = "ASSET_REVIEW"
	StateLayoutReview    State = "LAYOUT_REVIEW"
	StateRendering       State = "RENDERING"
	StateQA              State = "QA"
	StateEnd             State = "END"
	StateFailed          State = "FAILED"
	StateCancelled       State = "CANCELLED"
)

// transitions is the allowed-transition table. A transition not listed here
// is a pipeline bug, not a user error, and is fatal to the run.
// FAILED keeps a single recovery edge back into plot generation.
var transitions = map[State][]State{
	StateIdle:            {StatePlotGeneration, StateFailed, StateCancelled},
	StatePlotGeneration:  {StatePlotReview, StateAssetGeneration, StateFailed, StateCancelled},
	StatePlotReview:      {StateAssetGeneration, StatePlotGeneration, StateFailed, StateCancelled},
	StateAssetGeneration: {StateAssetReview, StateLayoutReview, StateRendering, StateFailed, StateCancelled},
	StateAssetReview:     {StateLayoutReview, StateRendering, StateAssetGeneration, StateFailed, StateCancelled},
	StateLayoutReview:    {StateRendering, StateAssetGeneration, StateFailed, StateCancelled},
	StateRendering:       {StateQA, StateFailed, StateCancelled},
	StateQA:              {StateEnd, StatePlotGeneration, StateFailed, StateCancelled},
	StateEnd:             {},
	StateFailed:          {StatePlotGeneration},
	StateCancelled:       {},
}

// CanTransitionTo reports whether the transition table allows s -> to.
func (s State) CanTransitionTo(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s is an end state of the pipeline. FAILED is
// terminal even though it keeps a recovery edge.
func (s State) Terminal() bool {
	return s == StateEnd || s == StateFailed || s == StateCancelled
}

// Review reports whether s is a checkpoint state where the run parks
// awaiting an external confirm or regenerate call.
func (s State) Review() bool {
	return s == StatePlotReview || s == StateAssetReview || s == StateLayoutReview
}

// Valid reports whether s is a known pipeline state.
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Stage identifies one executor-backed phase of the pipeline
type Stage string

const (
	StagePlot   Stage = "plot"
	StageAssets Stage = "assets"
	StageRender Stage = "render"
	StageQA     Stage = "qa"
)

// RunningState is the pipeline state a run occupies while the stage executes.
func (st Stage) RunningState() State {
	switch st {
	case StagePlot:
		return StatePlotGeneration
	case StageAssets:
		return StateAssetGeneration
	case StageRender:
		return StateRendering
	case StageQA:
		return StateQA
	}
	return StateFailed
}

// StageJob is one asynchronous stage invocation handed to a dispatcher.
// Generation guards against stale deliveries: a job whose generation no
// longer matches the run's is dropped instead of executed.
type StageJob struct {
	RunID      string `json:"run_id"`
	Stage      Stage  `json:"stage"`
	Generation int    `json:"generation"`
}

// Run is the aggregate root: one end-to-end video-generation job.
type Run struct {
	ID        string    `json:"run_id"`
	Owner     string    `json:"owner,omitempty"`
	Spec      RunSpec   `json:"spec"`
	State     State     `json:"state"`
	Progress  float64   `json:"progress"`
	Artifacts Artifacts `json:"artifacts"`
	Logs      []string  `json:"logs"`

	// Seq increases by one for every published event so subscribers can
	// detect gaps. Generation increases on every stage dispatch.
	Seq        uint64    `json:"seq"`
	Generation int       `json:"generation"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Owned reports whether the run was created by an authenticated identity.
func (r *Run) Owned() bool {
	return r.Owner != ""
}

// OwnedBy reports whether identity may mutate the run. Anonymous runs are
// mutable by anyone holding the run id.
func (r *Run) OwnedBy(identity string) bool {
	return r.Owner == "" || r.Owner == identity
}

// AppendLog appends one human-readable progress line. Logs are append-only
// and never truncated during a run.
func (r *Run) AppendLog(line string) {
	r.Logs = append(r.Logs, line)
}

// LogsNewestFirst returns a copy of the log lines in reverse-chronological
// order, the order clients display them in.
func (r *Run) LogsNewestFirst() []string {
	out := make([]string, len(r.Logs))
	for i, line := range r.Logs {
		out[len(r.Logs)-1-i] = line
	}
	return out
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing internal state to concurrent mutation.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	out := *r
	out.Logs = append([]string(nil), r.Logs...)
	out.Spec = *r.Spec.Clone()
	out.Artifacts = *r.Artifacts.Clone()
	return &out
}
