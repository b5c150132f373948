// Package main is the entry point for the dashboard backend server.
//
// The server fronts two subsystems: a resilient outbound client for the
// dashboard's upstream dependencies (retry with backoff, per-target circuit
// breakers, read-only response caching) and an in-memory job queue for
// long-running work (priority dispatch, progress reporting, batch
// monitoring).
//
// Architecture:
//
//	Dashboard (browser) → HTTP API → Job Queue → Work Functions
//	                                           → Resilient Client → Upstreams
//
// The server provides:
//   - REST API for job submission, polling, blocking wait, and batches
//   - WebSocket streaming of job lifecycle events
//   - Prometheus metrics and health reporting
//   - Rate limiting and CORS
//
// Configuration:
//   - Environment variables (12-factor); see internal/infrastructure/config
//   - Dependency targets from TARGET_<NAME>_URL variables
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	TARGET_ANALYTICS_URL=https://analytics.internal ./server -port 8000
//
//	# Development mode (colored logs, debug level)
//	LOG_DEV=true ./server
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
