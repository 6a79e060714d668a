package sections

import (
	"io"
	"slices"
	"sync"

	"github.com/yndnr/chunkmeta-go/internal/core/record"
)

// VersionChange is a chunk version bump that was started but not yet
// acknowledged by the replicas.
type VersionChange struct {
	Fid         int64
	ChunkID     int64
	FromVersion int64
	ToVersion   int64
}

// ChunkVersions tracks pending chunk version changes keyed by chunk id.
//
// Section lines:
//
//	chunkvers/fid/<fid>/chunkid/<cid>/from/<v>/to/<v>
//	chunkvers/end
type ChunkVersions struct {
	mu      sync.Mutex
	pending map[int64]VersionChange
}

// NewChunkVersions creates an empty tracker.
func NewChunkVersions() *ChunkVersions {
	return &ChunkVersions{pending: make(map[int64]VersionChange)}
}

func (c *ChunkVersions) Name() string { return "chunkvers" }

// Begin records a pending change.
func (c *ChunkVersions) Begin(v VersionChange) {
	c.mu.Lock()
	c.pending[v.ChunkID] = v
	c.mu.Unlock()
}

// Done removes the pending change for chunkID.
func (c *ChunkVersions) Done(chunkID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[chunkID]
	delete(c.pending, chunkID)
	return ok
}

// Get returns the pending change for chunkID.
func (c *ChunkVersions) Get(chunkID int64) (VersionChange, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.pending[chunkID]
	return v, ok
}

// Len returns the number of pending changes.
func (c *ChunkVersions) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Entries returns the pending changes ordered by chunk id.
func (c *ChunkVersions) Entries() []VersionChange {
	c.mu.Lock()
	out := make([]VersionChange, 0, len(c.pending))
	for _, v := range c.pending {
		out = append(out, v)
	}
	c.mu.Unlock()
	slices.SortFunc(out, func(a, b VersionChange) int { return cmpInt64(a.ChunkID, b.ChunkID) })
	return out
}

// Snapshot returns a deep copy.
func (c *ChunkVersions) Snapshot() *ChunkVersions {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := NewChunkVersions()
	for k, v := range c.pending {
		cp.pending[k] = v
	}
	return cp
}

func (c *ChunkVersions) WriteSection(w io.Writer) error {
	entries := c.Entries()
	lines := make([]string, 0, len(entries))
	for _, v := range entries {
		lines = append(lines, record.NewBuilder(c.Name()).
			KHex("fid", v.Fid).
			KHex("chunkid", v.ChunkID).
			KHex("from", v.FromVersion).
			KHex("to", v.ToVersion).
			Line())
	}
	return writeLines(w, c.Name(), lines)
}

func (c *ChunkVersions) ReplaySection(r *LineReader) error {
	return replayLines(r, c.Name(), func(f *record.Fields) error {
		var v VersionChange
		v.Fid = f.KHex("fid")
		v.ChunkID = f.KHex("chunkid")
		v.FromVersion = f.KHex("from")
		v.ToVersion = f.KHex("to")
		if f.Err() == nil {
			c.Begin(v)
		}
		return nil
	})
}
