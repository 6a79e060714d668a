package sections

import (
	"io"
	"slices"

	"github.com/yndnr/chunkmeta-go/internal/core/record"
	"github.com/yndnr/chunkmeta-go/pkg/cmap"
)

// IdempotentRequest is the remembered outcome of a non-idempotent client
// request, so that a retry returns the original result instead of applying
// the mutation twice.
type IdempotentRequest struct {
	ID     int64
	Seq    int64 // log sequence number the request committed at
	UID    uint32
	Op     string
	Status int64
	Time   int64 // microseconds since epoch
}

// IdempotentTracker holds completed requests keyed by request id.
//
// Section lines:
//
//	idempotent/id/<reqid>/seq/<seq>/uid/<uid>/op/<name>/status/<st>/time/<usec>
//	idempotent/end
type IdempotentTracker struct {
	reqs *cmap.Map[int64, IdempotentRequest]
}

// NewIdempotentTracker creates an empty tracker.
func NewIdempotentTracker() *IdempotentTracker {
	return &IdempotentTracker{reqs: cmap.New[int64, IdempotentRequest]()}
}

func (t *IdempotentTracker) Name() string { return "idempotent" }

// Record stores req. It reports false if a request with the same id is
// already tracked; the earlier outcome is kept.
func (t *IdempotentTracker) Record(req IdempotentRequest) bool {
	return t.reqs.SetIfAbsent(req.ID, req)
}

// Lookup returns the tracked outcome for id.
func (t *IdempotentTracker) Lookup(id int64) (IdempotentRequest, bool) {
	return t.reqs.Get(id)
}

// Forget drops the request with id.
func (t *IdempotentTracker) Forget(id int64) bool {
	_, ok := t.reqs.Pop(id)
	return ok
}

// Expire drops requests recorded before the given time in microseconds.
func (t *IdempotentTracker) Expire(beforeUsec int64) int {
	return t.reqs.DeleteIf(func(_ int64, r IdempotentRequest) bool {
		return r.Time < beforeUsec
	})
}

// Len returns the number of tracked requests.
func (t *IdempotentTracker) Len() int {
	return t.reqs.Count()
}

// Requests returns the tracked requests ordered by id.
func (t *IdempotentTracker) Requests() []IdempotentRequest {
	out := make([]IdempotentRequest, 0, t.reqs.Count())
	for _, r := range t.reqs.All() {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b IdempotentRequest) int { return cmpInt64(a.ID, b.ID) })
	return out
}

// Snapshot returns a deep copy.
func (t *IdempotentTracker) Snapshot() *IdempotentTracker {
	return &IdempotentTracker{reqs: t.reqs.Clone()}
}

func (t *IdempotentTracker) WriteSection(w io.Writer) error {
	reqs := t.Requests()
	lines := make([]string, 0, len(reqs))
	for _, r := range reqs {
		lines = append(lines, record.NewBuilder(t.Name()).
			KHex("id", r.ID).
			KHex("seq", r.Seq).
			KUhex("uid", uint64(r.UID)).
			Str("op").Name(r.Op).
			KHex("status", r.Status).
			KHex("time", r.Time).
			Line())
	}
	return writeLines(w, t.Name(), lines)
}

func (t *IdempotentTracker) ReplaySection(r *LineReader) error {
	return replayLines(r, t.Name(), func(f *record.Fields) error {
		var req IdempotentRequest
		req.ID = f.KHex("id")
		req.Seq = f.KHex("seq")
		req.UID = uint32(f.KUhexN("uid", 32))
		f.Expect("op")
		req.Op = f.Name()
		req.Status = f.KHex("status")
		req.Time = f.KHex("time")
		if f.Err() == nil {
			t.reqs.Set(req.ID, req)
		}
		return nil
	})
}
