// Package httpserver provides the admin HTTP server of the metadata
// server, built on net/http:
//
//   - Health endpoints: /healthz, /readyz
//   - Metrics: /metrics (Prometheus)
//   - Admin endpoints: /admin/v1/status, /admin/v1/checkpoint
//
// Every request gets a ULID request id, panics are recovered, and admin
// endpoints can be limited to an IP/CIDR allowlist.
package httpserver
