package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
	"github.com/yndnr/chunkmeta-go/internal/core/metatree"
	"github.com/yndnr/chunkmeta-go/internal/core/sections"
	"github.com/yndnr/chunkmeta-go/internal/storage/checkpoint"
	"github.com/yndnr/chunkmeta-go/internal/storage/oplog"
	"github.com/yndnr/chunkmeta-go/internal/telemetry/metric"
	"github.com/yndnr/chunkmeta-go/pkg/crypto/adaptive"
)

// Default configuration values.
const (
	DefaultCheckpointInterval = time.Hour
	DefaultCheckpointMinGap   = time.Minute
	DefaultIdempotentTTL      = 10 * time.Minute
	DefaultLogDir             = "log"
	DefaultCheckpointDir      = "kfscp"
)

// replayCtxCheckEvery is how many entries are replayed between context checks.
const replayCtxCheckEvery = 1024

// Config configures the storage engine.
type Config struct {
	// DataDir is the base directory for all storage files.
	DataDir string

	// Log configuration
	Log oplog.Config

	// Checkpoint configuration
	Checkpoint checkpoint.Config

	// CheckpointInterval is the interval between automatic checkpoints.
	CheckpointInterval time.Duration

	// CheckpointMinGap is the minimum time between two checkpoints, manual
	// or automatic.
	CheckpointMinGap time.Duration

	// LogRetainCount is the number of log segments kept after compaction.
	LogRetainCount int

	// IdempotentTTL is how long completed requests are remembered.
	IdempotentTTL time.Duration

	// FSID identifies the file system. Zero picks a random id when the
	// root is first created.
	FSID int64

	// Cipher is the optional log payload cipher.
	Cipher adaptive.Cipher

	// Metrics receives engine metrics. Nil creates a private registry.
	Metrics *metric.Registry

	// Logger is the structured logger.
	Logger *slog.Logger
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:            dataDir,
		Log:                oplog.DefaultConfig(filepath.Join(dataDir, DefaultLogDir)),
		Checkpoint:         checkpoint.DefaultConfig(filepath.Join(dataDir, DefaultCheckpointDir)),
		CheckpointInterval: DefaultCheckpointInterval,
		CheckpointMinGap:   DefaultCheckpointMinGap,
		LogRetainCount:     oplog.DefaultRetainCount,
		IdempotentTTL:      DefaultIdempotentTTL,
		Logger:             slog.Default(),
	}
}

// Engine owns the metadata tree and section state, logs every mutation and
// periodically checkpoints.
type Engine struct {
	cfg Config

	// mu serializes mutations with their log appends and with the
	// snapshot taken for a checkpoint. Readers hold it shared.
	mu sync.RWMutex
	st state

	log       *oplog.Writer
	coord     *oplog.Coordinator
	cp        *checkpoint.Writer
	compactor *oplog.Compactor
	limiter   *rate.Limiter
	metrics   *metric.Registry

	recovered bool
	failed    error

	logger *slog.Logger

	// Shutdown
	loopOnce  sync.Once
	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a new storage engine.
//
// This opens the log and checkpoint directories but does NOT perform
// recovery. Call Recover() after New() to load existing data; mutations
// are rejected until it succeeds.
func New(cfg Config) (*Engine, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("storage: data_dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Log.Dir == "" {
		cfg.Log.Dir = filepath.Join(cfg.DataDir, DefaultLogDir)
	}
	if cfg.Checkpoint.Dir == "" {
		cfg.Checkpoint.Dir = filepath.Join(cfg.DataDir, DefaultCheckpointDir)
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = DefaultCheckpointInterval
	}
	if cfg.IdempotentTTL <= 0 {
		cfg.IdempotentTTL = DefaultIdempotentTTL
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metric.NewRegistry()
	}

	// Apply common config to subcomponents
	cfg.Log.Cipher = cfg.Cipher
	cfg.Log.Logger = cfg.Logger.With("component", "oplog")
	cfg.Checkpoint.Logger = cfg.Logger.With("component", "checkpoint")

	if removed, err := checkpoint.CleanTemp(cfg.Checkpoint.Dir); err != nil {
		cfg.Logger.Warn("remove stale checkpoint temp files failed", "error", err)
	} else if len(removed) > 0 {
		cfg.Logger.Info("removed stale checkpoint temp files", "files", removed)
	}

	cp, err := checkpoint.NewWriter(cfg.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("storage: create checkpoint writer: %w", err)
	}

	logWriter, err := oplog.NewWriter(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("storage: open log: %w", err)
	}

	limit := rate.Inf
	if cfg.CheckpointMinGap > 0 {
		limit = rate.Every(cfg.CheckpointMinGap)
	}

	e := &Engine{
		cfg:       cfg,
		log:       logWriter,
		coord:     oplog.NewCoordinator(logWriter, 0, 0),
		cp:        cp,
		compactor: oplog.NewCompactor(cfg.Log.Dir, oplog.WithRetainCount(cfg.LogRetainCount)),
		limiter:   rate.NewLimiter(limit, 1),
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	cfg.Metrics.MustRegister(metric.NewCollector(e.Stats))
	return e, nil
}

// Recover rebuilds in-memory state from the latest checkpoint and the log.
//
// Recovery process:
//  1. Load the newest checkpoint that passes integrity checks
//  2. Replay log entries after the checkpoint's sequence number, starting
//     at the segment its header names
//  3. Compare each replayed status with the logged one
//  4. Create the root directory if the tree is still empty
//
// The background checkpoint loop starts once recovery succeeds.
func (e *Engine) Recover(ctx context.Context) error {
	startTime := time.Now()
	e.logger.Info("storage recovery started")

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.recovered {
		return fmt.Errorf("storage: already recovered")
	}

	var (
		fromLog     string
		seq, errSum int64
	)
	res, err := checkpoint.LoadLatest(e.cfg.Checkpoint.Dir)
	switch {
	case err == nil:
		for _, path := range res.Skipped {
			e.logger.Warn("skipped corrupt checkpoint", "path", path)
		}
		if len(res.Absent) > 0 {
			e.logger.Info("checkpoint predates sections", "sections", res.Absent)
		}
		e.logger.Info("checkpoint loaded",
			"path", res.Info.Path,
			"log_seq", res.Header.LogSeq,
			"log_name", res.Header.LogName,
			"leaves", res.Info.Leaves,
			"elapsed", time.Since(startTime))
		e.st = state{tree: res.Tree, sets: res.Sections}
		fromLog, seq, errSum = res.Header.LogName, res.Header.LogSeq, res.Header.ErrChecksum
		e.metrics.CheckpointSeq.Set(float64(seq))
		e.metrics.CheckpointSize.Set(float64(res.Info.Size))
	case errors.Is(err, domain.ErrNoCheckpoint):
		e.logger.Info("no checkpoint found, replaying the whole log")
		e.st = state{tree: metatree.New(0, time.Time{}), sets: sections.NewSet()}
	default:
		return fmt.Errorf("storage: load checkpoint: %w", err)
	}

	replayStart := time.Now()
	applied, seq, errSum, err := e.replay(ctx, fromLog, seq, errSum)
	if err != nil {
		return fmt.Errorf("storage: replay log: %w", err)
	}
	if applied > 0 {
		e.logger.Info("log replayed",
			"entries_applied", applied,
			"from_log", fromLog,
			"last_seq", seq,
			"elapsed", time.Since(replayStart))
	}

	if err := e.coord.Reset(seq, errSum); err != nil {
		return fmt.Errorf("storage: reset log state: %w", err)
	}
	e.recovered = true

	if e.st.tree.Empty() {
		fsid := e.cfg.FSID
		if fsid == 0 {
			fsid = rand.Int64N(1<<62) + 1
		}
		if err := e.doLocked(&bootstrapOp{FSID: fsid}); err != nil {
			return fmt.Errorf("storage: bootstrap root: %w", err)
		}
		e.logger.Info("created root directory", "fsid", fsid)
	}

	elapsed := time.Since(startTime)
	e.metrics.RecoveryDuration.Set(elapsed.Seconds())
	e.logger.Info("recovery completed",
		"elapsed", elapsed,
		"leaves", e.st.tree.Len(),
		"next_seq", e.coord.NextSeq())

	e.loopOnce.Do(func() { go e.backgroundLoop() })
	return nil
}

// replay applies log entries after seq, starting at segment from (the
// whole log when empty). It returns the number applied and the resulting
// sequence number and error checksum.
func (e *Engine) replay(ctx context.Context, from string, seq, errSum int64) (int, int64, int64, error) {
	reader, err := oplog.NewReader(e.cfg.Log.Dir, e.cfg.Cipher)
	if err != nil {
		return 0, seq, errSum, err
	}
	defer reader.Close()

	if from != "" {
		if err := reader.Seek(from); err != nil {
			return 0, seq, errSum, err
		}
	}

	applied := 0
	for {
		if applied%replayCtxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return applied, seq, errSum, err
			}
		}
		entry, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return applied, seq, errSum, nil
			}
			return applied, seq, errSum, err
		}
		if entry.Seq <= seq {
			continue
		}
		if entry.Seq != seq+1 {
			return applied, seq, errSum, domain.ErrLogGap.WithDetails(
				fmt.Sprintf("expected %d, found %d in %s", seq+1, entry.Seq, reader.Segment()))
		}
		if err := e.replayEntry(entry); err != nil {
			return applied, seq, errSum, err
		}
		seq = entry.Seq
		errSum += entry.Status
		applied++
		e.metrics.ReplayedEntries.Inc()
	}
}

func (e *Engine) replayEntry(entry *oplog.Entry) error {
	m, err := newMutation(entry.Op)
	if err != nil {
		return err
	}
	if err := entry.Decode(m); err != nil {
		return domain.ErrMalformed.WithCause(err)
	}
	status := StatusOf(m.apply(&e.st, entry.Timestamp))
	if status != entry.Status {
		return domain.ErrLogChecksum.WithDetails(fmt.Sprintf(
			"entry %d (%s) replayed with status %d, logged %d", entry.Seq, entry.Op, status, entry.Status))
	}
	e.recordRequest(m, entry.Seq, status, entry.Timestamp)
	return nil
}

func (e *Engine) recordRequest(m mutation, seq, status, ts int64) {
	req := m.request()
	if req.ID == 0 {
		return
	}
	e.st.sets.Idempotent.Record(sections.IdempotentRequest{
		ID:     req.ID,
		Seq:    seq,
		UID:    req.UID,
		Op:     m.op().String(),
		Status: status,
		Time:   ts,
	})
}

// do applies m and logs it.
func (e *Engine) do(ctx context.Context, m mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doLocked(m)
}

// doLocked applies m and logs it. A mutation that fails is logged only
// when it carries a request id, so a retry gets the same answer. If the
// log append fails after a successful apply the engine stops accepting
// mutations: memory is ahead of the log and only a restart can reconcile
// them.
func (e *Engine) doLocked(m mutation) error {
	if !e.recovered {
		return domain.ErrLogClosed.WithDetails("engine not recovered")
	}
	if e.failed != nil {
		return domain.ErrLogClosed.WithCause(e.failed)
	}

	req := m.request()
	if req.ID != 0 {
		if prev, ok := e.st.sets.Idempotent.Lookup(req.ID); ok {
			return StatusError(prev.Status)
		}
	}

	ts := time.Now().UnixMicro()
	applyErr := m.apply(&e.st, ts)
	if applyErr != nil && req.ID == 0 {
		return applyErr
	}
	status := StatusOf(applyErr)

	seq, err := e.coord.Append(m.op(), status, ts, m)
	if err != nil {
		e.metrics.LogAppendErrors.Inc()
		if applyErr == nil {
			e.failed = err
			e.logger.Error("log append failed after apply, refusing further mutations",
				"op", m.op().String(),
				"error", err)
			return domain.ErrLogClosed.WithCause(err)
		}
		return fmt.Errorf("storage: log %s: %w", m.op(), err)
	}
	e.metrics.LogEntries.WithLabelValues(m.op().String()).Inc()
	e.recordRequest(m, seq, status, ts)
	return applyErr
}

// TriggerCheckpoint writes a checkpoint of the current state.
//
// Under the mutation lock the log is rolled over and the tree and
// sections are snapshotted; the checkpoint is then written without
// holding the lock. On success old checkpoints are pruned and log
// segments before the one the checkpoint names are compacted.
func (e *Engine) TriggerCheckpoint(ctx context.Context) (*checkpoint.Info, error) {
	if !e.limiter.Allow() {
		e.metrics.Checkpoints.WithLabelValues(metric.ResultBusy).Inc()
		return nil, domain.ErrCheckpointThrottled
	}

	e.mu.Lock()
	if !e.recovered {
		e.mu.Unlock()
		return nil, domain.ErrLogClosed.WithDetails("engine not recovered")
	}
	if e.failed != nil {
		e.mu.Unlock()
		return nil, domain.ErrLogClosed.WithCause(e.failed)
	}
	if e.cp.InProgress() {
		e.mu.Unlock()
		e.metrics.Checkpoints.WithLabelValues(metric.ResultBusy).Inc()
		return nil, domain.ErrCheckpointInProgress
	}
	if last, ok := e.cp.LastSeq(); ok && e.coord.Snapshot().Seq <= last {
		e.mu.Unlock()
		return nil, domain.ErrSequenceReused.WithDetails(fmt.Sprintf("no mutations since checkpoint %d", last))
	}
	st, err := e.coord.Rollover()
	if err != nil {
		e.mu.Unlock()
		e.metrics.Checkpoints.WithLabelValues(metric.ResultFailed).Inc()
		return nil, fmt.Errorf("storage: roll over log: %w", err)
	}
	src := checkpoint.Source{
		Tree:     e.st.tree.Snapshot(),
		Sections: e.st.sets.Snapshot().Ordered(),
	}
	e.mu.Unlock()

	start := time.Now()
	info, err := e.cp.Write(ctx, src, st.LogName, st.Seq, st.ErrChecksum)
	if err != nil {
		if errors.Is(err, domain.ErrCheckpointInProgress) {
			e.metrics.Checkpoints.WithLabelValues(metric.ResultBusy).Inc()
		} else {
			e.metrics.Checkpoints.WithLabelValues(metric.ResultFailed).Inc()
		}
		return nil, err
	}
	e.metrics.Checkpoints.WithLabelValues(metric.ResultOK).Inc()
	e.metrics.CheckpointDuration.Observe(time.Since(start).Seconds())
	e.metrics.CheckpointSize.Set(float64(info.Size))
	e.metrics.CheckpointSeq.Set(float64(info.Seq))

	if removed, err := e.cp.Prune(); err != nil {
		e.logger.Warn("checkpoint prune failed", "error", err)
	} else if len(removed) > 0 {
		e.logger.Info("pruned checkpoints", "files", removed)
	}

	// Recovery starts at the oldest retained checkpoint in the worst case,
	// so only segments before the one it names may go.
	keepFrom := st.LogName
	if infos, err := checkpoint.List(e.cfg.Checkpoint.Dir); err == nil && len(infos) > 0 {
		if h, err := checkpoint.ReadHeader(infos[0].Path); err == nil {
			keepFrom = h.LogName
		}
	}
	if n, err := e.compactor.Compact(keepFrom); err != nil {
		e.logger.Warn("log compaction failed", "error", err)
	} else if n > 0 {
		e.metrics.LogCompacted.Add(float64(n))
		e.logger.Info("compacted log", "segments_removed", n, "keep_from", keepFrom)
	}
	return info, nil
}

// backgroundLoop runs periodic checkpoints and expires section state.
func (e *Engine) backgroundLoop() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.CheckpointInterval)
	defer ticker.Stop()

	housekeeping := time.NewTicker(min(e.cfg.IdempotentTTL, time.Minute))
	defer housekeeping.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), e.cfg.CheckpointInterval)
			if _, err := e.TriggerCheckpoint(ctx); err != nil {
				switch {
				case errors.Is(err, domain.ErrSequenceReused),
					errors.Is(err, domain.ErrCheckpointThrottled),
					errors.Is(err, domain.ErrCheckpointInProgress):
					e.logger.Debug("auto checkpoint skipped", "reason", err)
				default:
					e.logger.Error("auto checkpoint failed", "error", err)
				}
			}
			cancel()

		case now := <-housekeeping.C:
			if err := e.expire(now); err != nil {
				e.logger.Warn("expire section state failed", "error", err)
			}

		case <-e.stopCh:
			return
		}
	}
}

// expire logs expiry of canceled tokens past their validity and of
// completed requests older than IdempotentTTL. Nothing is logged when
// nothing is due.
func (e *Engine) expire(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tokensDue := false
	for _, tok := range e.st.sets.CanceledTokens.Tokens() {
		if tok.Expires() <= now.Unix() {
			tokensDue = true
			break
		}
	}
	if tokensDue {
		if err := e.doLocked(&tokenExpireOp{Now: now.Unix()}); err != nil {
			return err
		}
	}

	before := now.Add(-e.cfg.IdempotentTTL).UnixMicro()
	for _, req := range e.st.sets.Idempotent.Requests() {
		if req.Time < before {
			return e.doLocked(&idempotentExpireOp{Before: before})
		}
	}
	return nil
}

// Flush writes buffered log entries to disk.
func (e *Engine) Flush() error {
	return e.coord.Flush()
}

// Close gracefully shuts down the storage engine.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.logger.Info("shutting down storage engine")

		// Signal background loop to stop
		close(e.stopCh)
		started := true
		e.loopOnce.Do(func() { started = false })
		if started {
			<-e.doneCh
		}

		// Close log writer (this will flush pending writes)
		if err = e.log.Close(); err != nil {
			e.logger.Error("close log failed", "error", err)
			return
		}
		e.logger.Info("storage engine shutdown complete")
	})
	return err
}

// Ready returns nil once recovery has completed and the engine accepts
// mutations.
func (e *Engine) Ready() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.recovered {
		return domain.ErrLogClosed.WithDetails("engine not recovered")
	}
	if e.failed != nil {
		return domain.ErrLogClosed.WithCause(e.failed)
	}
	return nil
}

// State returns the log coordinator state.
func (e *Engine) State() oplog.State {
	return e.coord.Snapshot()
}

// LatestCheckpoint describes the checkpoint the latest pointer names, or
// the newest one when the pointer is missing.
func (e *Engine) LatestCheckpoint() (*checkpoint.Info, error) {
	infos, err := checkpoint.List(e.cfg.Checkpoint.Dir)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, domain.ErrNoCheckpoint
	}
	for _, info := range infos {
		if info.Latest {
			return info, nil
		}
	}
	return infos[len(infos)-1], nil
}

// Stats returns a point-in-time view for metrics.
func (e *Engine) Stats() metric.Stats {
	var s metric.Stats

	e.mu.RLock()
	if e.st.tree != nil {
		s.Leaves = e.st.tree.Len()
		s.Sections = e.st.sets.Counts()
	} else {
		s.Sections = map[string]int{}
	}
	e.mu.RUnlock()

	s.LogBytes, _ = e.compactor.TotalSize()
	s.LogSegments, _ = e.compactor.FileCount()
	return s
}
