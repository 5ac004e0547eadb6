// Package websocket streams job lifecycle and node events to clients.
//
// Clients connect to /api/v1/jobs/:id/ws. The stream closes after the job's
// terminal event.
package websocket
