// Package workers implements the inline stage dispatcher: a fixed pool of
// goroutines that consume stage jobs from a bounded queue and hand each one
// to the orchestrator's stage runner. It serves single-process deployments;
// distributed deployments use the asynq queue adapter instead.
//
// The health monitor tracks worker status and feeds the component_up metric.
package workers
