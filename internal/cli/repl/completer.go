package repl

import (
	"slices"
	"strings"
)

// Completer suggests commands for a typed prefix.
type Completer struct {
	commands []string
}

// builtins are handled by the shell itself.
var builtins = []string{"help", "history", "exit", "quit"}

// NewCompleter creates a Completer over commands plus the shell builtins.
// Commands are full command paths such as "checkpoint verify".
func NewCompleter(commands ...string) *Completer {
	all := append(slices.Clone(commands), builtins...)
	slices.Sort(all)
	return &Completer{commands: slices.Compact(all)}
}

// Complete returns the commands starting with prefix, in sorted order.
func (c *Completer) Complete(prefix string) []string {
	prefix = strings.Join(strings.Fields(prefix), " ")
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// Commands returns every known command.
func (c *Completer) Commands() []string {
	return slices.Clone(c.commands)
}
