package sections

import (
	"io"
	"slices"
	"sync"

	"github.com/yndnr/chunkmeta-go/internal/core/record"
)

// ObjStoreDelete is a removed object-store file whose blocks have not yet
// been deleted from the backing store.
type ObjStoreDelete struct {
	Fid      int64
	LastSize int64 // file size at removal; blocks below it are deleted
	QueuedAt int64 // microseconds since epoch
}

// ObjStoreDeletes is the queue of pending object-store deletions keyed by
// file id.
//
// Section lines:
//
//	objstoredelete/fid/<fid>/size/<n>/queued/<usec>
//	objstoredelete/end
type ObjStoreDeletes struct {
	mu      sync.Mutex
	pending map[int64]ObjStoreDelete
}

// NewObjStoreDeletes creates an empty queue.
func NewObjStoreDeletes() *ObjStoreDeletes {
	return &ObjStoreDeletes{pending: make(map[int64]ObjStoreDelete)}
}

func (o *ObjStoreDeletes) Name() string { return "objstoredelete" }

// Enqueue schedules deletion of d.
func (o *ObjStoreDeletes) Enqueue(d ObjStoreDelete) {
	o.mu.Lock()
	o.pending[d.Fid] = d
	o.mu.Unlock()
}

// Done removes fid from the queue.
func (o *ObjStoreDeletes) Done(fid int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.pending[fid]
	delete(o.pending, fid)
	return ok
}

// Len returns the queue length.
func (o *ObjStoreDeletes) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Pending returns the queued deletions oldest first.
func (o *ObjStoreDeletes) Pending() []ObjStoreDelete {
	o.mu.Lock()
	out := make([]ObjStoreDelete, 0, len(o.pending))
	for _, d := range o.pending {
		out = append(out, d)
	}
	o.mu.Unlock()
	slices.SortFunc(out, func(a, b ObjStoreDelete) int {
		if c := cmpInt64(a.QueuedAt, b.QueuedAt); c != 0 {
			return c
		}
		return cmpInt64(a.Fid, b.Fid)
	})
	return out
}

// Snapshot returns a deep copy.
func (o *ObjStoreDeletes) Snapshot() *ObjStoreDeletes {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := NewObjStoreDeletes()
	for k, v := range o.pending {
		cp.pending[k] = v
	}
	return cp
}

func (o *ObjStoreDeletes) WriteSection(w io.Writer) error {
	pending := o.Pending()
	lines := make([]string, 0, len(pending))
	for _, d := range pending {
		lines = append(lines, record.NewBuilder(o.Name()).
			KHex("fid", d.Fid).
			KHex("size", d.LastSize).
			KHex("queued", d.QueuedAt).
			Line())
	}
	return writeLines(w, o.Name(), lines)
}

func (o *ObjStoreDeletes) ReplaySection(r *LineReader) error {
	return replayLines(r, o.Name(), func(f *record.Fields) error {
		var d ObjStoreDelete
		d.Fid = f.KHex("fid")
		d.LastSize = f.KHex("size")
		d.QueuedAt = f.KHex("queued")
		if f.Err() == nil {
			o.Enqueue(d)
		}
		return nil
	})
}
