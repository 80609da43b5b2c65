// Package server implements the HTTP server using Echo framework.
//
// Routes: submission intake, pipeline reads (deltas, snapshots, alerts,
// rewards, fusion), admin operations, export, federation WebSocket, health
// probes. Handlers split by concern: handlers_submissions.go,
// handlers_pipeline.go, handlers_admin.go, handlers_federation.go,
// handlers_health.go.
package server
