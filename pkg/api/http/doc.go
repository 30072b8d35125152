// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Run creation and management
//   - Review checkpoints (plot, assets, layout)
//   - Health checks
//   - Prometheus metrics
package http
