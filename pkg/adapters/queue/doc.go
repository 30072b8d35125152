// Package queue provides the distributed stage dispatcher.
//
// Implementations:
//   - asynq: Redis-backed task queue for api/worker deployments
//
// The inline dispatcher for single-process deployments lives in
// internal/application/workers.
package queue
