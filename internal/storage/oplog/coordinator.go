package oplog

import (
	"sync"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
)

// State is the coordinator triple recorded in a checkpoint header.
type State struct {
	LogName     string `json:"log_name"`
	Seq         int64  `json:"seq"`
	ErrChecksum int64  `json:"err_checksum"`
}

// Coordinator assigns sequence numbers to entries, accumulates the error
// checksum and names the segment entries are written to.
//
// The error checksum is the sum of the statuses of every logged entry. A
// replay that reproduces a different sum did not reach the same state.
type Coordinator struct {
	mu          sync.Mutex
	w           *Writer
	seq         int64
	errChecksum int64
}

// NewCoordinator creates a coordinator that appends to w, continuing after
// seq with the given error checksum.
func NewCoordinator(w *Writer, seq, errChecksum int64) *Coordinator {
	return &Coordinator{w: w, seq: seq, errChecksum: errChecksum}
}

// Append assigns the next sequence number to an entry for op and writes it.
// A non-zero ts (microseconds) replaces the entry timestamp. The sequence
// number is consumed only when the write succeeds.
func (c *Coordinator) Append(op Op, status, ts int64, data any) (int64, error) {
	e, err := NewEntry(op, status, data)
	if err != nil {
		return 0, err
	}
	if ts != 0 {
		e.Timestamp = ts
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e.Seq = c.seq + 1
	if err := c.w.Append(e); err != nil {
		return 0, err
	}
	c.seq = e.Seq
	c.errChecksum += status
	return e.Seq, nil
}

// Snapshot returns a consistent view of the coordinator state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{LogName: c.w.SegmentName(), Seq: c.seq, ErrChecksum: c.errChecksum}
}

// NextSeq returns the sequence number the next entry will receive.
func (c *Coordinator) NextSeq() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq + 1
}

// Rollover finalizes the active segment and starts a new one. The returned
// state names the new segment: every entry after State.Seq is written to it
// or a later one.
func (c *Coordinator) Rollover() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name, err := c.w.Rollover()
	if err != nil {
		return State{}, err
	}
	return State{LogName: name, Seq: c.seq, ErrChecksum: c.errChecksum}, nil
}

// Reset sets the coordinator state after recovery. seq must not go
// backwards.
func (c *Coordinator) Reset(seq, errChecksum int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq < c.seq {
		return domain.ErrInvalidArgument.WithDetails("log sequence cannot go backwards")
	}
	c.seq = seq
	c.errChecksum = errChecksum
	return nil
}

// Flush writes buffered entries to disk.
func (c *Coordinator) Flush() error {
	return c.w.Flush()
}
