// Package repl provides the interactive shell of chunkmeta-cli.
//
// Each input line is split into arguments and handed to the same command
// tree the non-interactive CLI runs. A line ending in '?' lists the
// commands starting with what precedes it.
package repl
