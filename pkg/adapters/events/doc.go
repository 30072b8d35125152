// Package events provides event bus implementations.
//
// Implementations:
//   - redis: Redis pub/sub, bridges worker processes to the API process
//   - memory: In-process delivery for single-process deployments and testing
package events
