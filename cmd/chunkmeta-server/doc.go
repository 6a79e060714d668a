// Package main provides the entry point for chunkmeta-server.
//
// The server owns the file system metadata. At startup it loads the newest
// valid checkpoint, replays the operation log written after it and then
// serves the admin endpoint while checkpointing periodically.
//
// Usage:
//
//	chunkmeta-server [flags]
//	chunkmeta-server -config /etc/chunkmeta/chunkmeta.yaml
//
// Only log.level is applied when the configuration file changes; every
// other key needs a restart.
package main
