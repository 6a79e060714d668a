// Package oplog provides the append-only mutation log of the metadata
// server.
package oplog

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
	"github.com/yndnr/chunkmeta-go/pkg/crypto/adaptive"
)

var errInvalidMagic = errors.New("oplog: invalid magic bytes")

// File format constants.
const (
	FilePrefix      = "log."
	MagicBytes      = "CMOPLOG\x01"
	MagicBytesSize  = 8
	ChecksumSize    = 32
	DefaultFilePerm = 0o600
	DefaultDirPerm  = 0o750
)

// Default configuration values.
const (
	DefaultBatchCount         = 100
	DefaultBatchBytes   int64 = 1 << 20 // 1MB
	DefaultSyncInterval       = time.Second
	DefaultMaxFileSize  int64 = 64 << 20 // 64MB
)

// SyncMode defines how the log syncs to disk.
type SyncMode string

const (
	SyncModeSync  SyncMode = "sync"
	SyncModeBatch SyncMode = "batch"
)

// Config configures the log writer.
type Config struct {
	Dir string

	SyncMode     SyncMode
	SyncInterval time.Duration

	BatchCount int
	BatchBytes int64

	MaxFileSize int64

	Cipher adaptive.Cipher

	Logger *slog.Logger
}

// DefaultConfig returns the default log configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:          dir,
		SyncMode:     SyncModeBatch,
		SyncInterval: DefaultSyncInterval,
		BatchCount:   DefaultBatchCount,
		BatchBytes:   DefaultBatchBytes,
		MaxFileSize:  DefaultMaxFileSize,
		Logger:       slog.Default(),
	}
}

func applyDefaults(cfg *Config) {
	if cfg.SyncMode == "" {
		cfg.SyncMode = SyncModeBatch
	}
	if cfg.SyncInterval == 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if cfg.BatchCount == 0 {
		cfg.BatchCount = DefaultBatchCount
	}
	if cfg.BatchBytes == 0 {
		cfg.BatchBytes = DefaultBatchBytes
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// SegmentName returns the file name of segment id.
func SegmentName(id uint64) string {
	return FilePrefix + strconv.FormatUint(id, 10)
}

// ParseSegmentName returns the id of a segment file name.
func ParseSegmentName(name string) (uint64, bool) {
	rest, ok := strings.CutPrefix(filepath.Base(name), FilePrefix)
	if !ok || rest == "" || strings.ContainsFunc(rest, func(r rune) bool { return r < '0' || r > '9' }) {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	return id, err == nil
}

// Writer writes entries to log segment files.
type Writer struct {
	cfg    Config
	cipher adaptive.Cipher
	logger *slog.Logger

	mu sync.Mutex

	segmentID uint64
	file      *os.File
	filePath  string

	fileSize    int64 // bytes written excluding trailing checksum
	hash        hash.Hash
	buffer      [][]byte
	bufferBytes int64
	syncTicker  *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	closed      bool
}

// NewWriter opens the log in cfg.Dir. An unfinalized last segment is
// resumed after truncating any torn final frame; otherwise a new segment
// is started.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("oplog: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("oplog: create dir: %w", err)
	}

	applyDefaults(&cfg)

	w := &Writer{
		cfg:    cfg,
		cipher: cfg.Cipher,
		logger: cfg.Logger,
		hash:   sha256.New(),
		stopCh: make(chan struct{}),
	}

	segs, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}

	resumed := false
	if len(segs) > 0 {
		last := segs[len(segs)-1]
		w.segmentID = last.id
		closed, err := segmentFinalized(last.path)
		if err != nil {
			return nil, err
		}
		if closed {
			w.segmentID++
		} else {
			w.filePath = last.path
			if err := w.openExistingOpenSegment(); err != nil {
				return nil, err
			}
			resumed = true
		}
	}
	if !resumed {
		if err := w.openNewSegment(); err != nil {
			return nil, err
		}
	}

	if w.cfg.SyncMode == SyncModeBatch {
		w.startSyncLoop()
	}

	return w, nil
}

// SegmentName returns the name of the active segment.
func (w *Writer) SegmentName() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return SegmentName(w.segmentID)
}

// Append buffers an entry and flushes depending on batch thresholds. In
// sync mode the entry is on disk when Append returns.
func (w *Writer) Append(entry *Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return domain.ErrLogClosed
	}

	frame, err := encodeEntryFrame(entry, w.cipher)
	if err != nil {
		return err
	}

	w.buffer = append(w.buffer, frame)
	w.bufferBytes += int64(len(frame))

	if w.cfg.SyncMode == SyncModeSync || len(w.buffer) >= w.cfg.BatchCount || w.bufferBytes >= w.cfg.BatchBytes {
		return w.flushLocked()
	}
	return nil
}

// Flush writes buffered entries to disk.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return w.flushLocked()
}

// Rollover flushes and finalizes the active segment and starts the next
// one. It returns the name of the new segment.
func (w *Writer) Rollover() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return "", domain.ErrLogClosed
	}
	if err := w.finalizeSegmentLocked(); err != nil {
		return "", err
	}
	w.segmentID++
	if err := w.openNewSegment(); err != nil {
		return "", err
	}
	return SegmentName(w.segmentID), nil
}

func (w *Writer) flushLocked() error {
	if len(w.buffer) == 0 {
		if w.cfg.SyncMode == SyncModeSync && w.file != nil {
			return w.file.Sync()
		}
		return nil
	}

	var buf bytes.Buffer
	for _, frame := range w.buffer {
		buf.Write(frame)
	}

	if w.file == nil {
		return fmt.Errorf("oplog: file not open")
	}
	// Rotate before writing if this batch would exceed the segment limit.
	if w.fileSize > MagicBytesSize && w.fileSize+int64(buf.Len()) > w.cfg.MaxFileSize {
		if err := w.finalizeSegmentWithoutFlushingLocked(); err != nil {
			return err
		}
		w.segmentID++
		if err := w.openNewSegment(); err != nil {
			return err
		}
	}

	if _, err := w.writeLocked(buf.Bytes()); err != nil {
		return fmt.Errorf("oplog: write batch: %w", err)
	}

	w.buffer = nil
	w.bufferBytes = 0

	if w.cfg.SyncMode == SyncModeSync {
		return w.file.Sync()
	}
	return nil
}

func (w *Writer) startSyncLoop() {
	w.syncTicker = time.NewTicker(w.cfg.SyncInterval)
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.syncTicker.C:
				if err := w.Flush(); err != nil {
					w.logger.Error("oplog flush failed", "error", err)
				}
			case <-w.stopCh:
				return
			}
		}
	}()
}

func (w *Writer) openNewSegment() error {
	path := filepath.Join(w.cfg.Dir, SegmentName(w.segmentID))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("oplog: open segment: %w", err)
	}

	w.file = file
	w.filePath = path
	w.fileSize = 0
	w.hash = sha256.New()

	if _, err := w.writeLocked([]byte(MagicBytes)); err != nil {
		file.Close()
		w.file = nil
		return fmt.Errorf("oplog: write magic: %w", err)
	}
	return nil
}

func (w *Writer) openExistingOpenSegment() error {
	file, err := os.OpenFile(w.filePath, os.O_RDWR, DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("oplog: open existing segment: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("oplog: stat segment: %w", err)
	}

	if stat.Size() < MagicBytesSize {
		// Created but the magic never reached disk.
		file.Close()
		if err := os.Remove(w.filePath); err != nil {
			return fmt.Errorf("oplog: remove empty segment: %w", err)
		}
		return w.openNewSegment()
	}

	dataLen, err := validDataLength(file, stat.Size())
	if err != nil {
		file.Close()
		return err
	}
	if dataLen < stat.Size() {
		w.logger.Warn("truncating torn log tail",
			"segment", filepath.Base(w.filePath),
			"size", stat.Size(),
			"valid", dataLen)
		if err := file.Truncate(dataLen); err != nil {
			file.Close()
			return fmt.Errorf("oplog: truncate: %w", err)
		}
	}

	// Recompute hash over existing bytes.
	w.hash = sha256.New()
	if _, err := io.CopyN(w.hash, io.NewSectionReader(file, 0, dataLen), dataLen); err != nil {
		file.Close()
		return fmt.Errorf("oplog: hash existing segment: %w", err)
	}

	w.file = file
	w.fileSize = dataLen

	if _, err := file.Seek(dataLen, io.SeekStart); err != nil {
		file.Close()
		return fmt.Errorf("oplog: seek: %w", err)
	}
	return nil
}

func (w *Writer) writeLocked(p []byte) (int, error) {
	if w.file == nil {
		return 0, fmt.Errorf("oplog: file not open")
	}

	n, err := w.file.Write(p)
	if n > 0 {
		w.hash.Write(p[:n])
		w.fileSize += int64(n)
	}
	return n, err
}

func (w *Writer) finalizeSegmentLocked() error {
	if err := w.flushLocked(); err != nil {
		return err
	}
	if w.file == nil {
		return nil
	}
	return w.finalizeSegmentWithoutFlushingLocked()
}

func (w *Writer) finalizeSegmentWithoutFlushingLocked() error {
	checksum := w.hash.Sum(nil)
	if _, err := w.file.Write(checksum); err != nil {
		return fmt.Errorf("oplog: write checksum: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("oplog: sync: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("oplog: close: %w", err)
	}

	w.file = nil
	return nil
}

// Close flushes pending writes and finalizes the current segment with a checksum.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.stopCh)
	w.mu.Unlock()

	if w.syncTicker != nil {
		w.syncTicker.Stop()
	}
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	return w.finalizeSegmentLocked()
}

type segmentInfo struct {
	id   uint64
	path string
}

func listSegments(dir string) ([]segmentInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("oplog: read dir: %w", err)
	}

	var segs []segmentInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := ParseSegmentName(e.Name())
		if !ok {
			continue
		}
		segs = append(segs, segmentInfo{id: id, path: filepath.Join(dir, e.Name())})
	}
	slices.SortFunc(segs, func(a, b segmentInfo) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	return segs, nil
}

func segmentFinalized(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("oplog: open latest: %w", err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("oplog: stat latest: %w", err)
	}
	closed, _, err := verifyChecksumTrailer(f, stat.Size())
	return closed, err
}

// verifyChecksumTrailer reports whether the file ends with a valid SHA-256
// trailer, and the length of the data before it.
func verifyChecksumTrailer(f *os.File, size int64) (closed bool, dataLen int64, err error) {
	if size < MagicBytesSize {
		return false, size, nil
	}

	magic := make([]byte, MagicBytesSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, MagicBytesSize), magic); err != nil {
		return false, 0, fmt.Errorf("oplog: read magic: %w", err)
	}
	if string(magic) != MagicBytes {
		return false, 0, errInvalidMagic
	}

	if size < MagicBytesSize+ChecksumSize {
		return false, size, nil
	}

	trailer := make([]byte, ChecksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, size-ChecksumSize, ChecksumSize), trailer); err != nil {
		return false, 0, fmt.Errorf("oplog: read checksum trailer: %w", err)
	}

	h := sha256.New()
	dataLen = size - ChecksumSize
	if _, err := io.CopyN(h, io.NewSectionReader(f, 0, dataLen), dataLen); err != nil {
		return false, 0, fmt.Errorf("oplog: hash: %w", err)
	}
	if !bytes.Equal(h.Sum(nil), trailer) {
		return false, size, nil
	}
	return true, dataLen, nil
}

// validDataLength returns the length of the prefix of an open segment made
// of the magic and complete, checksum-valid frames.
func validDataLength(f *os.File, size int64) (int64, error) {
	if size < MagicBytesSize {
		return 0, errInvalidMagic
	}
	r := bufio.NewReader(io.NewSectionReader(f, 0, size))
	magic := make([]byte, MagicBytesSize)
	if _, err := io.ReadFull(r, magic); err != nil {
		return 0, fmt.Errorf("oplog: read magic: %w", err)
	}
	if string(magic) != MagicBytes {
		return 0, errInvalidMagic
	}

	valid := int64(MagicBytesSize)
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return valid, nil
		}
		length := binary.BigEndian.Uint32(lenBuf[:])
		if length < 5 || length > maxFrameSize || valid+4+int64(length) > size {
			return valid, nil
		}
		frame := make([]byte, length)
		if _, err := io.ReadFull(r, frame); err != nil {
			return valid, nil
		}
		if verifyFrame(frame) != nil {
			return valid, nil
		}
		valid += 4 + int64(length)
	}
}
