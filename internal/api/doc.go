// Package api hosts the HTTP server and REST handlers for running checks.
// Notable routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/checks to check one resource synchronously.
//   - GET /v1/notes/{kind} to describe a note kind.
package api
