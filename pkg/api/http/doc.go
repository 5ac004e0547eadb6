// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Job submission and status queries under /api/v1/jobs
//   - The task-style /run-task and /status/:id routes
//   - Health checks
//   - Prometheus metrics
//   - Rendered media under /media, when a media directory is configured
package http
