// Package command defines the chunkmeta-cli command tree.
//
// Offline commands read checkpoint and log files directly:
//
//	chunkmeta-cli checkpoint list|header|verify|dump
//	chunkmeta-cli log segments|dump
//
// Online commands call the admin endpoint of a running server:
//
//	chunkmeta-cli admin health|status|checkpoint
//
// "shell" runs the same tree interactively.
package command
