// Package metric provides Prometheus metrics for the metadata server.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: registry of checkpoint, log and recovery metrics and
//     the HTTP handler
//   - collector.go: collector sampling in-memory state at scrape time
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
