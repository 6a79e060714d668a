package command

import (
	"context"
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/chunkmeta-go/internal/cli/connection"
	"github.com/yndnr/chunkmeta-go/internal/cli/output"
	"github.com/yndnr/chunkmeta-go/internal/server/httpserver/handler"
	"github.com/yndnr/chunkmeta-go/internal/storage/checkpoint"
)

// AdminCommand returns the admin subcommand group.
func AdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Query and control a running server",
		Subcommands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check liveness and readiness",
				Action: adminHealth,
			},
			{
				Name:   "status",
				Usage:  "Show tree, section and log statistics",
				Action: adminStatus,
			},
			{
				Name:  "checkpoint",
				Usage: "Show checkpoint progress, or write a checkpoint with --trigger",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "trigger", Aliases: []string{"t"}, Usage: "Write a checkpoint now"},
				},
				Action: adminCheckpoint,
			},
		},
	}
}

func get(c *cli.Context, path string, target any) error {
	ctx, cancel := context.WithTimeout(c.Context, Config(c).Timeout)
	defer cancel()
	client, err := Client(c)
	if err != nil {
		return err
	}
	resp, err := client.Get(ctx, path)
	if err != nil {
		return err
	}
	return connection.ParseResponse(resp, target)
}

// healthRow is the state of one probe.
type healthRow struct {
	Probe  string `json:"probe" yaml:"probe"`
	Status string `json:"status" yaml:"status"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

func adminHealth(c *cli.Context) error {
	var rows []healthRow
	var firstErr error
	for _, probe := range []string{"healthz", "readyz"} {
		var body struct {
			Status string `json:"status"`
		}
		row := healthRow{Probe: probe}
		if err := get(c, "/"+probe, &body); err != nil {
			row.Status = "failing"
			row.Error = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		} else {
			row.Status = body.Status
		}
		rows = append(rows, row)
	}
	if err := render(c, rows); err != nil {
		return err
	}
	return firstErr
}

func adminStatus(c *cli.Context) error {
	var status handler.StatusResponse
	if err := get(c, "/admin/v1/status", &status); err != nil {
		return err
	}
	if !tableOutput(c) {
		return render(c, status)
	}

	w := c.App.Writer
	ready := "ready"
	if !status.Ready {
		ready = "not ready: " + status.Error
	}
	fmt.Fprintf(w, "Server %s (%s)\n", status.Build.Version, ready)
	fmt.Fprintf(w, "  log %s, seq %d, err checksum %d\n", status.Log.LogName, status.Log.Seq, status.Log.ErrChecksum)
	fmt.Fprintf(w, "  %d segments, %s on disk\n", status.LogSegments, output.Bytes(status.LogBytes))
	fmt.Fprintf(w, "  %d tree leaves\n\n", status.Leaves)

	names := make([]string, 0, len(status.Sections))
	for name := range status.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	t := &output.Table{}
	t.SetHeaders("SECTION", "ENTRIES")
	for _, name := range names {
		t.AddRow(name, fmt.Sprint(status.Sections[name]))
	}
	return t.Render(w)
}

func adminCheckpoint(c *cli.Context) error {
	if !c.Bool("trigger") {
		var status handler.CheckpointStatus
		if err := get(c, "/admin/v1/checkpoint", &status); err != nil {
			return err
		}
		return render(c, status)
	}

	ctx, cancel := context.WithTimeout(c.Context, Config(c).Timeout)
	defer cancel()
	client, err := Client(c)
	if err != nil {
		return err
	}
	resp, err := client.Post(ctx, "/admin/v1/checkpoint", nil)
	if err != nil {
		return err
	}
	var info checkpoint.Info
	if err := connection.ParseResponse(resp, &info); err != nil {
		return err
	}
	if tableOutput(c) {
		fmt.Fprintf(c.App.Writer, "checkpoint %d written to %s (%s, %d leaves)\n",
			info.Seq, info.Path, output.Bytes(info.Size), info.Leaves)
		return nil
	}
	return render(c, info)
}
