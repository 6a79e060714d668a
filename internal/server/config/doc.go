// Package config defines the metadata server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking secrets for logging
//   - storage.go: mapping onto the storage engine configuration
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// CHUNKMETA_ environment variables and flags.
package config
