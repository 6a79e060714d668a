package sections

import (
	"io"
	"slices"
	"sync"

	"github.com/yndnr/chunkmeta-go/internal/core/record"
)

// MakeStableEntry is a chunk whose make-stable round has started but not
// completed.
type MakeStableEntry struct {
	Fid          int64
	ChunkID      int64
	ChunkVersion int64
	Size         int64
	Checksum     uint32
	HasChecksum  bool
}

// MakeStable tracks pending make-stable operations keyed by chunk id.
//
// Section lines:
//
//	mkstable/fid/<fid>/chunkid/<cid>/chunkVersion/<v>/size/<n>/checksum/<crc>/hasChecksum/<0|1>
//	mkstable/end
type MakeStable struct {
	mu      sync.Mutex
	pending map[int64]MakeStableEntry
}

// NewMakeStable creates an empty tracker.
func NewMakeStable() *MakeStable {
	return &MakeStable{pending: make(map[int64]MakeStableEntry)}
}

func (m *MakeStable) Name() string { return "mkstable" }

// Begin records e as pending, replacing any earlier entry for the chunk.
func (m *MakeStable) Begin(e MakeStableEntry) {
	m.mu.Lock()
	m.pending[e.ChunkID] = e
	m.mu.Unlock()
}

// Done removes the entry for chunkID and reports whether it was pending.
func (m *MakeStable) Done(chunkID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[chunkID]
	delete(m.pending, chunkID)
	return ok
}

// Get returns the pending entry for chunkID.
func (m *MakeStable) Get(chunkID int64) (MakeStableEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.pending[chunkID]
	return e, ok
}

// Len returns the number of pending entries.
func (m *MakeStable) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Entries returns the pending entries ordered by chunk id.
func (m *MakeStable) Entries() []MakeStableEntry {
	m.mu.Lock()
	out := make([]MakeStableEntry, 0, len(m.pending))
	for _, e := range m.pending {
		out = append(out, e)
	}
	m.mu.Unlock()
	slices.SortFunc(out, func(a, b MakeStableEntry) int { return cmpInt64(a.ChunkID, b.ChunkID) })
	return out
}

// Snapshot returns a deep copy.
func (m *MakeStable) Snapshot() *MakeStable {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := NewMakeStable()
	for k, v := range m.pending {
		cp.pending[k] = v
	}
	return cp
}

func (m *MakeStable) WriteSection(w io.Writer) error {
	entries := m.Entries()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, record.NewBuilder(m.Name()).
			KHex("fid", e.Fid).
			KHex("chunkid", e.ChunkID).
			KHex("chunkVersion", e.ChunkVersion).
			KHex("size", e.Size).
			KUhex("checksum", uint64(e.Checksum)).
			Str("hasChecksum").Bool(e.HasChecksum).
			Line())
	}
	return writeLines(w, m.Name(), lines)
}

func (m *MakeStable) ReplaySection(r *LineReader) error {
	return replayLines(r, m.Name(), func(f *record.Fields) error {
		var e MakeStableEntry
		e.Fid = f.KHex("fid")
		e.ChunkID = f.KHex("chunkid")
		e.ChunkVersion = f.KHex("chunkVersion")
		e.Size = f.KHex("size")
		e.Checksum = uint32(f.KUhexN("checksum", 32))
		f.Expect("hasChecksum")
		e.HasChecksum = f.Bool()
		if f.Err() == nil {
			m.Begin(e)
		}
		return nil
	})
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
