// Package metatree provides the in-memory namespace and chunk mapping tree
// of the metadata server.
package metatree

import (
	"fmt"
	"math"
	"time"

	"github.com/google/btree"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
)

// RootID is the id of the root directory.
const RootID int64 = 2

const btreeDegree = 32

// Tree is the ordered set of leaves plus the id seeds and file system
// identity stored in the checkpoint header.
//
// Tree is not safe for concurrent use. Snapshot returns an independent
// copy-on-write clone that may be read by another goroutine while the
// original keeps being mutated.
type Tree struct {
	leaves *btree.BTreeG[Leaf]

	fileIDSeed  int64
	chunkIDSeed int64
	fsid        int64
	crtime      time.Time
}

// New creates an empty tree for the given file system id.
func New(fsid int64, crtime time.Time) *Tree {
	return &Tree{
		leaves:     btree.NewG[Leaf](btreeDegree, less),
		fileIDSeed: RootID,
		fsid:       fsid,
		crtime:     crtime.UTC(),
	}
}

// Snapshot returns a point-in-time copy of the tree in O(1).
func (t *Tree) Snapshot() *Tree {
	return &Tree{
		leaves:      t.leaves.Clone(),
		fileIDSeed:  t.fileIDSeed,
		chunkIDSeed: t.chunkIDSeed,
		fsid:        t.fsid,
		crtime:      t.crtime,
	}
}

// Len returns the number of leaves.
func (t *Tree) Len() int { return t.leaves.Len() }

// Empty reports whether the tree has no leaves.
func (t *Tree) Empty() bool { return t.leaves.Len() == 0 }

// FSID returns the file system id.
func (t *Tree) FSID() int64 { return t.fsid }

// Crtime returns the file system creation time.
func (t *Tree) Crtime() time.Time { return t.crtime }

// SetFilesystemInfo sets the file system identity, used on load.
func (t *Tree) SetFilesystemInfo(fsid int64, crtime time.Time) {
	t.fsid = fsid
	t.crtime = crtime.UTC()
}

// FileIDSeed returns the last allocated file id.
func (t *Tree) FileIDSeed() int64 { return t.fileIDSeed }

// ChunkIDSeed returns the last allocated chunk id.
func (t *Tree) ChunkIDSeed() int64 { return t.chunkIDSeed }

// SetSeeds restores the id seeds, used on load.
func (t *Tree) SetSeeds(fileID, chunkID int64) {
	t.fileIDSeed = fileID
	t.chunkIDSeed = chunkID
}

// NextFileID returns the id the next created file or directory will get.
func (t *Tree) NextFileID() int64 { return t.fileIDSeed + 1 }

// NextChunkID returns the id the next allocated chunk will get.
func (t *Tree) NextChunkID() int64 { return t.chunkIDSeed + 1 }

func (t *Tree) bumpFileID(id int64) {
	if id > t.fileIDSeed {
		t.fileIDSeed = id
	}
}

func (t *Tree) bumpChunkID(id int64) {
	if id > t.chunkIDSeed {
		t.chunkIDSeed = id
	}
}

// Insert adds a leaf loaded from a checkpoint. An identical key already in
// the tree is reported as ErrExists.
func (t *Tree) Insert(l Leaf) error {
	if t.leaves.Has(l) {
		return domain.ErrExists.WithDetails(fmt.Sprintf("%s owned by %d", l.Kind(), l.Owner()))
	}
	t.leaves.ReplaceOrInsert(l)
	switch x := l.(type) {
	case Fattr:
		t.bumpFileID(x.ID)
	case ChunkInfo:
		t.bumpChunkID(x.ChunkID)
	}
	return nil
}

// Iterator walks leaves in checkpoint order.
type Iterator struct {
	leaves *btree.BTreeG[Leaf]
	last   Leaf
	done   bool
}

// Iterator returns an iterator positioned before the first leaf. The tree
// must not be mutated while iterating; iterate a Snapshot instead.
func (t *Tree) Iterator() *Iterator {
	return &Iterator{leaves: t.leaves}
}

// Next returns the next leaf, or false once the tree is exhausted.
func (it *Iterator) Next() (Leaf, bool) {
	if it.done {
		return nil, false
	}
	var next Leaf
	visit := func(l Leaf) bool {
		if it.last != nil && !less(it.last, l) {
			return true
		}
		next = l
		return false
	}
	if it.last == nil {
		it.leaves.Ascend(visit)
	} else {
		it.leaves.AscendGreaterOrEqual(it.last, visit)
	}
	if next == nil {
		it.done = true
		return nil, false
	}
	it.last = next
	return next, true
}

// Fattr returns the attributes of id.
func (t *Tree) Fattr(id int64) (Fattr, bool) {
	l, ok := t.leaves.Get(Fattr{ID: id})
	if !ok {
		return Fattr{}, false
	}
	return l.(Fattr), true
}

// Lookup returns the entry name inside directory parent.
func (t *Tree) Lookup(parent int64, name string) (Dentry, bool) {
	l, ok := t.leaves.Get(Dentry{Parent: parent, Name: name})
	if !ok {
		return Dentry{}, false
	}
	return l.(Dentry), true
}

// Children returns the entries of directory id in name order.
func (t *Tree) Children(id int64) []Dentry {
	var out []Dentry
	t.leaves.AscendGreaterOrEqual(Dentry{Parent: id}, func(l Leaf) bool {
		d, ok := l.(Dentry)
		if !ok || d.Parent != id {
			return false
		}
		out = append(out, d)
		return true
	})
	return out
}

// Chunks returns the chunks of file id in offset order.
func (t *Tree) Chunks(id int64) []ChunkInfo {
	var out []ChunkInfo
	t.leaves.AscendGreaterOrEqual(ChunkInfo{Fid: id, Offset: math.MinInt64}, func(l Leaf) bool {
		c, ok := l.(ChunkInfo)
		if !ok || c.Fid != id {
			return false
		}
		out = append(out, c)
		return true
	})
	return out
}
