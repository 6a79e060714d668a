// Package main provides the entry point for chunkmeta-cli.
//
// chunkmeta-cli inspects checkpoint and log files offline and manages a
// running chunkmeta-server through its admin endpoint.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/chunkmeta-go/internal/cli/command"
)

func main() {
	if err := command.App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
