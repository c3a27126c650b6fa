// Package api hosts the status HTTP server that runs alongside the crawler.
// Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the live run state.
//   - GET /v1/runs for recent run summaries.
//   - GET /v1/events for recently published snapshot events.
//   - POST /v1/runs to start a run outside the schedule.
package api
