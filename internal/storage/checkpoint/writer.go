// Package checkpoint writes and loads metadata checkpoints.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
	"github.com/yndnr/chunkmeta-go/internal/core/record"
	"github.com/yndnr/chunkmeta-go/internal/storage/mdstream"
)

// ctxCheckEvery is how many leaves are written between context checks.
const ctxCheckEvery = 4096

// Writer produces checkpoint files in one directory. At most one Write
// runs at a time.
type Writer struct {
	cfg    Config
	logger *slog.Logger

	inProgress atomic.Bool

	mu      sync.Mutex
	lastSeq int64
	hasLast bool
}

// NewWriter creates the checkpoint directory if needed and records the
// newest sequence number already published there.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("checkpoint: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir: %w", err)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Keep <= 0 {
		cfg.Keep = DefaultKeep
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	w := &Writer{cfg: cfg, logger: cfg.Logger}
	infos, err := List(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if len(infos) > 0 {
		w.lastSeq = infos[len(infos)-1].Seq
		w.hasLast = true
	}
	return w, nil
}

// Dir returns the checkpoint directory.
func (w *Writer) Dir() string { return w.cfg.Dir }

// LastSeq returns the sequence number of the newest published checkpoint.
func (w *Writer) LastSeq() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeq, w.hasLast
}

// InProgress reports whether a Write is running.
func (w *Writer) InProgress() bool { return w.inProgress.Load() }

// Prune applies the retention count to the checkpoint directory.
func (w *Writer) Prune() ([]string, error) {
	return Prune(w.cfg.Dir, w.cfg.Keep)
}

// Write externalizes src as checkpoint chkpt.<logSeq> and moves the latest
// pointer to it.
//
// logName, logSeq and errChecksum describe the log position the state in
// src corresponds to. A logSeq not greater than the newest published one
// is rejected with ErrSequenceReused. On any failure before the rename no
// file is published, the temporary file is removed and the latest pointer
// is unchanged. If only the latest pointer cannot be updated, Write fails
// with ErrCheckpointIO although chkpt.<logSeq> exists; that seq counts as
// published.
func (w *Writer) Write(ctx context.Context, src Source, logName string, logSeq, errChecksum int64) (*Info, error) {
	if logName == "" || strings.ContainsAny(logName, "\n/") {
		return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("log name %q", logName))
	}
	if src.Tree == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("nil tree")
	}
	if !w.inProgress.CompareAndSwap(false, true) {
		return nil, domain.ErrCheckpointInProgress
	}
	defer w.inProgress.Store(false)

	if last, ok := w.LastSeq(); ok && logSeq <= last {
		return nil, domain.ErrSequenceReused.WithDetails(fmt.Sprintf("seq %d, last published %d", logSeq, last))
	}
	target := filepath.Join(w.cfg.Dir, FileName(logSeq))
	if _, err := os.Lstat(target); err == nil {
		return nil, domain.ErrSequenceReused.WithDetails(target + " exists")
	}

	start := time.Now()
	runID := ulid.Make().String()
	logger := w.logger.With("run_id", runID, "seq", logSeq)

	info, err := w.write(ctx, src, target, runID, logName, logSeq, errChecksum)
	if err != nil {
		logger.Error("checkpoint failed", "error", err, "duration", time.Since(start))
		return nil, err
	}

	w.mu.Lock()
	w.lastSeq, w.hasLast = logSeq, true
	w.mu.Unlock()

	if err := w.linkLatest(target, runID); err != nil {
		// chkpt.<seq> is durable and stays recorded as published, so a
		// retry of this seq gets ErrSequenceReused.
		logger.Error("update latest pointer failed", "path", target, "error", err)
		return nil, domain.ErrCheckpointIO.WithDetails("update latest pointer to " + filepath.Base(target)).WithCause(err)
	}
	info.Latest = true

	logger.Info("checkpoint written",
		"path", target,
		"leaves", info.Leaves,
		"size", info.Size,
		"duration", time.Since(start))
	return info, nil
}

func (w *Writer) write(ctx context.Context, src Source, target, runID, logName string, logSeq, errChecksum int64) (*Info, error) {
	tmpPath := filepath.Join(w.cfg.Dir, FileName(logSeq)+"."+runID+tempSuffix)
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if w.cfg.WriteSync {
		flags |= os.O_SYNC
	}
	file, err := os.OpenFile(tmpPath, flags, 0o640)
	if err != nil {
		return nil, domain.ErrCheckpointIO.WithDetails("create temp file").WithCause(err)
	}

	success := false
	defer func() {
		if !success {
			_ = file.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	out := mdstream.NewWriter(file, w.cfg.BufferSize)
	now := time.Now()
	tree := src.Tree

	header := []string{
		"checkpoint/" + strconv.FormatInt(logSeq, 10) + "/" + strconv.FormatInt(errChecksum, 10),
		"checksum/last-line",
		"version/" + strconv.Itoa(FormatVersion),
		"filesysteminfo/fsid/" + strconv.FormatInt(tree.FSID(), 10) + "/crtime/" + record.FormatTime(tree.Crtime()),
		"fid/" + strconv.FormatInt(tree.FileIDSeed(), 10),
		"chunkId/" + strconv.FormatInt(tree.ChunkIDSeed(), 10),
		"time/" + record.FormatTime(now),
		"setintbase/16",
		"log/" + logName,
		"",
	}
	for _, line := range header {
		out.WriteString(line + "\n")
	}
	if err := out.Err(); err != nil {
		return nil, domain.ErrCheckpointIO.WithDetails("write header").WithCause(err)
	}

	leaves := 0
	it := tree.Iterator()
	for leaf, ok := it.Next(); ok; leaf, ok = it.Next() {
		if err := leaf.Checkpoint(out); err != nil {
			if out.Err() != nil {
				return nil, domain.ErrCheckpointIO.WithDetails("write leaf").WithCause(err)
			}
			return nil, domain.ErrCollaborator.WithDetails(fmt.Sprintf("%s leaf owned by %d", leaf.Kind(), leaf.Owner())).WithCause(err)
		}
		leaves++
		if leaves%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("checkpoint: %w", err)
			}
		}
	}

	for _, c := range src.Sections {
		if err := c.WriteSection(out); err != nil {
			if out.Err() != nil {
				return nil, domain.ErrCheckpointIO.WithDetails("write section " + c.Name()).WithCause(err)
			}
			return nil, domain.ErrCollaborator.WithDetails("section " + c.Name()).WithCause(err)
		}
	}

	out.WriteString("time/" + record.FormatTime(time.Now()) + "\n")
	digest := out.Digest()
	out.WriteTrailer()
	if err := out.Detach(); err != nil {
		return nil, domain.ErrCheckpointIO.WithDetails("flush").WithCause(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		return nil, domain.ErrCheckpointIO.WithDetails("sync").WithCause(err)
	}
	if err := file.Close(); err != nil {
		return nil, domain.ErrCheckpointIO.WithDetails("close").WithCause(err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return nil, domain.ErrCheckpointIO.WithDetails("rename").WithCause(err)
	}
	success = true
	if err := syncDir(w.cfg.Dir); err != nil {
		w.logger.Warn("sync checkpoint dir failed", "error", err)
	}

	return &Info{
		Seq:         logSeq,
		Path:        target,
		Size:        out.Written(),
		ModTime:     now,
		Checksum:    digest,
		LogName:     logName,
		ErrChecksum: errChecksum,
		Leaves:      leaves,
	}, nil
}

// linkLatest atomically points the latest symlink at target.
func (w *Writer) linkLatest(target, runID string) error {
	tmpLink := filepath.Join(w.cfg.Dir, LatestName+"."+runID+tempSuffix)
	if err := os.Symlink(filepath.Base(target), tmpLink); err != nil {
		return err
	}
	if err := os.Rename(tmpLink, filepath.Join(w.cfg.Dir, LatestName)); err != nil {
		_ = os.Remove(tmpLink)
		return err
	}
	if err := syncDir(w.cfg.Dir); err != nil {
		w.logger.Warn("sync checkpoint dir failed", "error", err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}
