// Package main hosts the redprobe entrypoint.
//
// Architecture overview:
//   - Fetch engine: internal/fetch runs one exchange through a state machine (robots gate, per-origin rate limit,
//     transport, header parsing, bounded body sampling, content-coding decode) and hands the completed response to the
//     status and cache analyzers.
//   - Probes: internal/probe derives conditional, range and content-negotiation sub-requests from the base response
//     and compares the answers.
//   - Orchestration: internal/resource starts the base exchange, fans out probes and optional link descent, and joins
//     everything under one deadline.
//   - Persistence: fetched robots.txt documents are cached in memory and optionally persisted to a local directory or
//     a SQLite database so repeated runs stay polite.
//   - Plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus metrics are
//     exported on /metrics when serving.
//
// Usage:
//   - One-shot check: redprobe -url https://example.com/ [-method HEAD] [-H "Accept: text/html"] [-descend]
//   - API server: redprobe -serve, then POST /v1/checks {"url": "https://example.com/"}.
//   - Configure via REDPROBE_* env vars, for example REDPROBE_ROBOTS_STORE=sqlite or REDPROBE_CHECK_TIMEOUT_SECONDS=60.
package main
