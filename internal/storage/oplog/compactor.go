package oplog

import (
	"errors"
	"fmt"
	"os"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
)

// DefaultRetainCount is the default number of segments kept after compaction.
const DefaultRetainCount = 2

// Compactor removes log segments covered by a published checkpoint.
type Compactor struct {
	dir         string
	retainCount int
}

// CompactorOption configures the Compactor.
type CompactorOption func(*Compactor)

// WithRetainCount sets the number of segments to retain.
func WithRetainCount(count int) CompactorOption {
	return func(c *Compactor) {
		if count > 0 {
			c.retainCount = count
		}
	}
}

// NewCompactor creates a compactor for the log in dir.
func NewCompactor(dir string, opts ...CompactorOption) *Compactor {
	c := &Compactor{
		dir:         dir,
		retainCount: DefaultRetainCount,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compact removes the segments older than the named one, which is the log
// a checkpoint recorded in its header. At least retainCount segments are
// always kept. It returns the number of segments removed.
func (c *Compactor) Compact(name string) (int, error) {
	keepFrom, ok := ParseSegmentName(name)
	if !ok {
		return 0, domain.ErrInvalidArgument.WithDetails("log segment name " + name)
	}

	segs, err := listSegments(c.dir)
	if err != nil {
		return 0, err
	}

	var toDelete []string
	for _, s := range segs {
		if s.id < keepFrom {
			toDelete = append(toDelete, s.path)
		}
	}

	if len(segs)-len(toDelete) < c.retainCount {
		keepCount := min(c.retainCount-(len(segs)-len(toDelete)), len(toDelete))
		toDelete = toDelete[:len(toDelete)-keepCount]
	}

	var errs []error
	removed := 0
	for _, path := range toDelete {
		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("oplog: failed to delete %d segments: %w", len(errs), errors.Join(errs...))
	}
	return removed, nil
}

// TotalSize returns the total size of all segments in bytes.
func (c *Compactor) TotalSize() (int64, error) {
	segs, err := listSegments(c.dir)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, s := range segs {
		info, err := os.Stat(s.path)
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// FileCount returns the number of segments.
func (c *Compactor) FileCount() (int, error) {
	segs, err := listSegments(c.dir)
	if err != nil {
		return 0, err
	}
	return len(segs), nil
}
