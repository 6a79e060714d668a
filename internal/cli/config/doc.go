// Package config holds the chunkmeta-cli configuration.
//
// Values come from ~/.chunkmeta/cli.yaml, then CHUNKMETA_CLI_*
// environment variables, then command-line flags.
package config
