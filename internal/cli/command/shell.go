package command

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/chunkmeta-go/internal/cli/repl"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Run commands interactively",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-history", Usage: "Do not read or write the history file"},
		},
		Action: runShell,
	}
}

func runShell(c *cli.Context) error {
	app := c.App
	// Global flags given on the command line apply to every shell command.
	var global []string
	for _, f := range globalFlags() {
		name := f.Names()[0]
		if c.IsSet(name) {
			global = append(global, "--"+name+"="+c.String(name))
		}
	}

	exec := func(args []string) error {
		if len(args) > 0 && args[0] == "shell" {
			return errors.New("already in the shell")
		}
		argv := append([]string{app.Name}, global...)
		return app.RunContext(c.Context, append(argv, args...))
	}

	history := repl.NewHistory(repl.DefaultHistoryFile())
	if c.Bool("no-history") {
		history = repl.NewHistory("")
	}
	opts := []repl.Option{repl.WithHistory(history)}
	if app.Reader != nil {
		opts = append(opts, repl.WithIO(app.Reader, app.Writer))
	}
	return repl.New(exec, repl.NewCompleter(commandPaths(app.Commands, "")...), opts...).Run()
}

// commandPaths lists every command path below cmds, e.g. "log dump".
func commandPaths(cmds []*cli.Command, prefix string) []string {
	var out []string
	for _, cmd := range cmds {
		if cmd.Hidden || cmd.Name == "shell" || cmd.Name == "help" {
			continue
		}
		path := prefix + cmd.Name
		out = append(out, path)
		out = append(out, commandPaths(cmd.Subcommands, path+" ")...)
	}
	return out
}
