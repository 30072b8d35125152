package domain

import "time"

// EventType discriminates broadcaster messages on the wire.
type EventType string

const (
	EventInitialState EventType = "initial_state"
	EventStateChange  EventType = "state_change"
	EventProgress     EventType = "progress"
)

// Event is one broadcaster message. The same shape serves the event bus and
// the WebSocket wire; optional fields are omitted per message type:
// state_change carries state+message, progress carries progress and
// optionally artifacts, initial_state carries the full snapshot.
type Event struct {
	Type      EventType  `json:"type"`
	RunID     string     `json:"run_id,omitempty"`
	State     State      `json:"state,omitempty"`
	Progress  *float64   `json:"progress,omitempty"`
	Message   string     `json:"message,omitempty"`
	Artifacts *Artifacts `json:"artifacts,omitempty"`
	Logs      []string   `json:"logs,omitempty"`
	Seq       uint64     `json:"seq,omitempty"`
	Timestamp time.Time  `json:"timestamp,omitempty"`
}

// NewStateChange builds the event published on every successful transition.
func NewStateChange(run *Run, message string) Event {
	return Event{
		Type:      EventStateChange,
		RunID:     run.ID,
		State:     run.State,
		Message:   message,
		Seq:       run.Seq,
		Timestamp: run.UpdatedAt,
	}
}

// NewProgress builds a stage-internal progress event. Artifacts ride along
// only when withArtifacts is set, so routine ticks stay small.
func NewProgress(run *Run, message string, withArtifacts bool) Event {
	progress := run.Progress
	ev := Event{
		Type:      EventProgress,
		RunID:     run.ID,
		State:     run.State,
		Progress:  &progress,
		Message:   message,
		Seq:       run.Seq,
		Timestamp: run.UpdatedAt,
	}
	if withArtifacts {
		ev.Artifacts = run.Artifacts.Clone()
	}
	return ev
}

// NewInitialState builds the snapshot replayed to a late subscriber. Its
// contents match a synchronous run query issued at the same moment.
func NewInitialState(run *Run) Event {
	progress := run.Progress
	return Event{
		Type:      EventInitialState,
		RunID:     run.ID,
		State:     run.State,
		Progress:  &progress,
		Artifacts: run.Artifacts.Clone(),
		Logs:      run.LogsNewestFirst(),
		Seq:       run.Seq,
		Timestamp: run.UpdatedAt,
	}
}
