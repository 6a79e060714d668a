// Package logger provides structured logging for the metadata server.
//
// It configures log/slog handlers:
//
//   - logger.go: handler construction and dynamic level
//   - context.go: context-aware logging with request ids
//   - redact.go: sensitive data redaction
//
// Features:
//
//   - JSON and text output formats
//   - Log level changes at runtime (config reload)
//   - Delegation token signatures and key material are masked
package logger
