// Package stages holds the pipeline's stage executors and the registry
// that resolves them per run. Deterministic stub executors live in the stub
// subpackage; the LLM-backed plot executor lives here and activates when a
// provider is configured.
package stages
