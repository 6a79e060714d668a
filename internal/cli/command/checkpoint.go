package command

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/chunkmeta-go/internal/cli/output"
	"github.com/yndnr/chunkmeta-go/internal/core/domain"
	"github.com/yndnr/chunkmeta-go/internal/core/metatree"
	"github.com/yndnr/chunkmeta-go/internal/core/sections"
	"github.com/yndnr/chunkmeta-go/internal/storage/checkpoint"
)

// CheckpointCommand returns the checkpoint subcommand group.
func CheckpointCommand() *cli.Command {
	return &cli.Command{
		Name:    "checkpoint",
		Aliases: []string{"cp"},
		Usage:   "Inspect checkpoint files",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List checkpoints, oldest first",
				Action: checkpointList,
			},
			{
				Name:      "header",
				Usage:     "Verify a checkpoint and show its header",
				ArgsUsage: "[latest|SEQ|PATH]",
				Action:    checkpointHeader,
			},
			{
				Name:      "verify",
				Usage:     "Verify checksums and parse checkpoints",
				ArgsUsage: "[latest|SEQ|PATH]...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Verify every checkpoint in the directory"},
				},
				Action: checkpointVerify,
			},
			{
				Name:      "dump",
				Usage:     "Summarize a checkpoint, optionally printing every leaf",
				ArgsUsage: "[latest|SEQ|PATH]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "leaves", Aliases: []string{"l"}, Usage: "Print the tree leaves"},
				},
				Action: checkpointDump,
			},
		},
	}
}

// checkpointRow is a checkpoint as listed.
type checkpointRow struct {
	Seq     int64     `json:"seq" yaml:"seq"`
	Name    string    `json:"name" yaml:"name"`
	Size    int64     `json:"size" yaml:"size" table:"bytes"`
	Age     string    `json:"-" yaml:"-"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time" table:"wide"`
	Latest  bool      `json:"latest" yaml:"latest"`
}

func checkpointList(c *cli.Context) error {
	dir := Config(c).CheckpointPath()
	infos, err := checkpoint.List(dir)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		if tableOutput(c) {
			fmt.Fprintf(c.App.Writer, "no checkpoints in %s\n", dir)
			return nil
		}
		return render(c, []checkpointRow{})
	}

	rows := make([]checkpointRow, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, checkpointRow{
			Seq:     info.Seq,
			Name:    filepath.Base(info.Path),
			Size:    info.Size,
			Age:     formatAge(info.ModTime),
			ModTime: info.ModTime,
			Latest:  info.Latest,
		})
	}
	return render(c, rows)
}

// resolveCheckpoint maps "latest", a sequence number or a path to a
// checkpoint file.
func resolveCheckpoint(c *cli.Context, arg string) (string, error) {
	dir := Config(c).CheckpointPath()
	switch {
	case arg == "" || arg == "latest":
		path, err := checkpoint.Latest(dir)
		if err != nil {
			return "", domain.ErrNoCheckpoint.WithDetails(dir).WithCause(err)
		}
		return path, nil
	default:
		if seq, err := strconv.ParseInt(arg, 10, 64); err == nil {
			return filepath.Join(dir, checkpoint.FileName(seq)), nil
		}
		return arg, nil
	}
}

func checkpointHeader(c *cli.Context) error {
	path, err := resolveCheckpoint(c, c.Args().First())
	if err != nil {
		return err
	}
	hdr, err := checkpoint.ReadHeader(path)
	if err != nil {
		return err
	}
	return render(c, hdr)
}

// verifyRow is the outcome of verifying one checkpoint.
type verifyRow struct {
	Name     string `json:"name" yaml:"name"`
	Seq      int64  `json:"seq" yaml:"seq"`
	Leaves   int    `json:"leaves" yaml:"leaves"`
	LogName  string `json:"log_name" yaml:"log_name"`
	Status   string `json:"status" yaml:"status"`
	Checksum string `json:"checksum,omitempty" yaml:"checksum,omitempty" table:"wide"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty" table:"wide"`
}

func checkpointVerify(c *cli.Context) error {
	var (
		paths []string
		sizes = map[string]int64{}
		total int64
	)
	if c.Bool("all") {
		infos, err := checkpoint.List(Config(c).CheckpointPath())
		if err != nil {
			return err
		}
		for _, info := range infos {
			paths = append(paths, info.Path)
			sizes[info.Path] = info.Size
			total += info.Size
		}
	} else {
		args := c.Args().Slice()
		if len(args) == 0 {
			args = []string{"latest"}
		}
		for _, arg := range args {
			path, err := resolveCheckpoint(c, arg)
			if err != nil {
				return err
			}
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		return domain.ErrNoCheckpoint.WithDetails(Config(c).CheckpointPath())
	}

	var bar *output.ProgressBar
	if total > 0 && tableOutput(c) {
		bar = output.NewProgressBar(stderr(c), "Verifying", len(paths), total)
	}

	rows := make([]verifyRow, 0, len(paths))
	failed := 0
	for _, path := range paths {
		row := verifyRow{Name: filepath.Base(path), Status: "ok"}
		res, err := checkpoint.Load(path)
		if err != nil {
			failed++
			row.Status = "corrupt"
			if !domain.IsIntegrity(err) {
				row.Status = "unreadable"
			}
			row.Error = err.Error()
			row.Seq, _ = checkpoint.ParseFileName(path)
		} else {
			row.Seq = res.Info.Seq
			row.Leaves = res.Info.Leaves
			row.LogName = res.Info.LogName
			row.Checksum = res.Info.Checksum
		}
		if bar != nil {
			bar.Step(sizes[path])
		}
		rows = append(rows, row)
	}
	if bar != nil {
		bar.Done()
	}

	if err := render(c, rows); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checkpoints failed verification", failed, len(paths))
	}
	return nil
}

// dumpSummary describes a loaded checkpoint.
type dumpSummary struct {
	Path     string            `json:"path" yaml:"path"`
	Header   checkpoint.Header `json:"header" yaml:"header"`
	Checksum string            `json:"checksum" yaml:"checksum"`
	Leaves   map[string]int    `json:"leaves" yaml:"leaves"`
	Sections map[string]int    `json:"sections" yaml:"sections"`
	Absent   []string          `json:"absent_sections,omitempty" yaml:"absent_sections,omitempty"`
}

func checkpointDump(c *cli.Context) error {
	path, err := resolveCheckpoint(c, c.Args().First())
	if err != nil {
		return err
	}
	res, err := checkpoint.Load(path)
	if err != nil {
		return err
	}

	if c.Bool("leaves") {
		it := res.Tree.Iterator()
		for {
			leaf, ok := it.Next()
			if !ok {
				return nil
			}
			if err := leaf.Checkpoint(c.App.Writer); err != nil {
				return err
			}
		}
	}

	summary := dumpSummary{
		Path:     path,
		Header:   res.Header,
		Checksum: res.Info.Checksum,
		Leaves:   map[string]int{},
		Sections: res.Sections.Counts(),
		Absent:   res.Absent,
	}
	it := res.Tree.Iterator()
	for leaf, ok := it.Next(); ok; leaf, ok = it.Next() {
		summary.Leaves[leaf.Kind().String()]++
	}

	if !tableOutput(c) {
		return render(c, summary)
	}
	return renderDumpTable(c, summary)
}

func renderDumpTable(c *cli.Context, s dumpSummary) error {
	w := c.App.Writer
	fmt.Fprintf(w, "Checkpoint %s\n", s.Path)
	fmt.Fprintf(w, "  seq %d, log %s, fsid %d, err checksum %d\n", s.Header.LogSeq, s.Header.LogName, s.Header.FSID, s.Header.ErrChecksum)
	fmt.Fprintf(w, "  written %s, checksum %s\n\n", s.Header.Time.Format(time.RFC3339), s.Checksum)

	t := &output.Table{}
	t.SetHeaders("KIND", "NAME", "ENTRIES")
	for _, k := range []metatree.Kind{metatree.KindFattr, metatree.KindDentry, metatree.KindChunkInfo} {
		t.AddRow("leaf", k.String(), strconv.Itoa(s.Leaves[k.String()]))
	}
	for _, sec := range sections.NewSet().Ordered() {
		t.AddRow("section", sec.Name(), strconv.Itoa(s.Sections[sec.Name()]))
	}
	if err := t.Render(w); err != nil {
		return err
	}
	if len(s.Absent) > 0 {
		fmt.Fprintf(w, "\nsections absent from this checkpoint: %v\n", s.Absent)
	}
	return nil
}
