package command

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/chunkmeta-go/internal/storage/oplog"
)

// LogCommand returns the log subcommand group.
func LogCommand() *cli.Command {
	return &cli.Command{
		Name:  "log",
		Usage: "Inspect operation log segments",
		Subcommands: []*cli.Command{
			{
				Name:   "segments",
				Usage:  "List log segments, oldest first",
				Action: logSegments,
			},
			{
				Name:  "dump",
				Usage: "Print log entries",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "First segment to read, e.g. log.3"},
					&cli.Int64Flag{Name: "after", Usage: "Skip entries with a sequence number up to this one"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Stop after this many entries (0 for all)"},
					&cli.BoolFlag{Name: "failed", Usage: "Only print entries with a non-zero status"},
				},
				Action: logDump,
			},
		},
	}
}

// segmentRow is a log segment as listed.
type segmentRow struct {
	Name    string    `json:"name" yaml:"name"`
	Size    int64     `json:"size" yaml:"size" table:"bytes"`
	Age     string    `json:"-" yaml:"-"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time" table:"wide"`
}

func logSegments(c *cli.Context) error {
	dir := Config(c).LogPath()
	r, err := oplog.NewReader(dir, nil)
	if err != nil {
		return err
	}
	defer r.Close()

	rows := []segmentRow{}
	for _, name := range r.Segments() {
		st, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		rows = append(rows, segmentRow{
			Name:    name,
			Size:    st.Size(),
			Age:     formatAge(st.ModTime()),
			ModTime: st.ModTime(),
		})
	}
	if len(rows) == 0 && tableOutput(c) {
		fmt.Fprintf(c.App.Writer, "no log segments in %s\n", dir)
		return nil
	}
	return render(c, rows)
}

// entryRow is a log entry as printed.
type entryRow struct {
	Seq     int64     `json:"seq" yaml:"seq"`
	Segment string    `json:"segment" yaml:"segment" table:"wide"`
	Op      string    `json:"op" yaml:"op"`
	Status  int64     `json:"status" yaml:"status"`
	Time    time.Time `json:"time" yaml:"time"`
	Data    string    `json:"data" yaml:"data"`
}

func logDump(c *cli.Context) error {
	cfg := Config(c)
	cipher, err := cfg.LogCipher()
	if err != nil {
		return err
	}
	r, err := oplog.NewReader(cfg.LogPath(), cipher)
	if err != nil {
		return err
	}
	defer r.Close()

	if from := c.String("from"); from != "" {
		if err := r.Seek(from); err != nil {
			return err
		}
	}

	var (
		after  = c.Int64("after")
		limit  = c.Int("limit")
		failed = c.Bool("failed")
		rows   = []entryRow{}
	)
	for limit <= 0 || len(rows) < limit {
		e, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Print what was read before the damaged entry.
			if renderErr := render(c, rows); renderErr != nil {
				return renderErr
			}
			return err
		}
		if e.Seq <= after || (failed && e.Status == 0) {
			continue
		}
		rows = append(rows, entryRow{
			Seq:     e.Seq,
			Segment: r.Segment(),
			Op:      e.Op.String(),
			Status:  e.Status,
			Time:    time.UnixMicro(e.Timestamp),
			Data:    string(e.Data),
		})
	}
	return render(c, rows)
}
