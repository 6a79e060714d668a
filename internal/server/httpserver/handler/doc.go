// Package handler provides the admin HTTP handlers of the metadata server.
//
//   - health.go: liveness and readiness
//   - checkpoint.go: checkpoint status and manual trigger
//
// Responses use a JSON envelope with a code, a message and the request id;
// domain errors map to HTTP status by their code.
package handler
