// Package orchestrator implements the run lifecycle for video generation.
//
// The manager coordinates each run by:
//   - Validating the run spec and persisting run state
//   - Driving the pipeline state machine along its allowed transitions
//   - Dispatching one stage job per stage entry and consuming results
//   - Resolving review checkpoints (confirm, regenerate) and cancellation
//   - Publishing state_change and progress events to the event bus
//
// Every mutation of a run happens under that run's lock, so of two racing
// checkpoint resolutions exactly one wins. Stage executors write back only
// through the reporter, which rejects writes from stale or cancelled
// executions.
package orchestrator
