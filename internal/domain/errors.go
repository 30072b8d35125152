package domain

import "errors"

// Error taxonomy returned synchronously by orchestrator operations. The API
// layer maps each sentinel to a status code; none of them is ever swallowed.
var (
	// ErrNotFound covers unknown run ids and unknown scene ids.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState marks an operation against a run that is not in the
	// required state, including a repeated confirm after a successful one.
	// Recoverable by re-querying the run.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrNotReady marks a fetch of an artifact that has not been produced
	// yet. Recoverable by retrying with backoff.
	ErrNotReady = errors.New("artifact not ready")

	// ErrInvalidTransition marks a transition outside the allowed table.
	// It signals a pipeline bug, is fatal to the run, and never mutates
	// the run's state on its own.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnauthorized marks a mutation of an owned run without the owning
	// identity.
	ErrUnauthorized = errors.New("identity does not own this run")

	// ErrValidation marks a request payload that fails spec or checkpoint
	// validation.
	ErrValidation = errors.New("validation failed")

	// ErrStaleWrite marks a run save rejected because another process
	// persisted a newer revision after this writer loaded its snapshot.
	// The writer's view of the run is obsolete; the mutation is dropped.
	ErrStaleWrite = errors.New("run modified by a newer write")
)
