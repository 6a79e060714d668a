package metatree

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
)

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	tr := New(7, time.Unix(1700000000, 0))
	if !tr.Bootstrap(1) {
		t.Fatal("Bootstrap returned false on empty tree")
	}
	return tr
}

func collect(tr *Tree) []Leaf {
	var out []Leaf
	it := tr.Iterator()
	for l, ok := it.Next(); ok; l, ok = it.Next() {
		out = append(out, l)
	}
	return out
}

func TestTree_Empty(t *testing.T) {
	tr := New(1, time.Now())
	if !tr.Empty() || tr.Len() != 0 {
		t.Fatalf("new tree not empty: len=%d", tr.Len())
	}
	if _, ok := tr.Iterator().Next(); ok {
		t.Fatal("iterator on empty tree returned a leaf")
	}
}

func TestTree_IteratorOrder(t *testing.T) {
	tr := newTestTree(t)
	if err := tr.Mkdir(RootID, "b", 10, 2); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := tr.Create(RootID, "a", 11, 3, 3); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tr.AllocateChunk(11, 1<<26, 101, 1); err != nil {
		t.Fatalf("AllocateChunk: %v", err)
	}
	if err := tr.AllocateChunk(11, 0, 100, 1); err != nil {
		t.Fatalf("AllocateChunk: %v", err)
	}

	var got []string
	for _, l := range collect(tr) {
		var buf bytes.Buffer
		if err := l.Checkpoint(&buf); err != nil {
			t.Fatalf("Checkpoint: %v", err)
		}
		got = append(got, strings.Join(strings.Split(buf.String(), "/")[:2], "/"))
	}
	want := []string{
		"fattr/dir",     // 2
		"dentry/name",   // 2/a
		"dentry/name",   // 2/b
		"fattr/dir",     // 10
		"fattr/file",    // 11
		"chunkinfo/fid", // 11@0
		"chunkinfo/fid", // 11@1<<26
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", got, want)
	}

	chunks := tr.Chunks(11)
	if len(chunks) != 2 || chunks[0].ChunkID != 100 || chunks[1].ChunkID != 101 {
		t.Fatalf("Chunks = %+v", chunks)
	}
	children := tr.Children(RootID)
	if len(children) != 2 || children[0].Name != "a" || children[1].Name != "b" {
		t.Fatalf("Children = %+v", children)
	}
	if tr.FileIDSeed() != 11 || tr.ChunkIDSeed() != 101 {
		t.Fatalf("seeds = %d/%d", tr.FileIDSeed(), tr.ChunkIDSeed())
	}
}

func TestTree_SnapshotIsolation(t *testing.T) {
	tr := newTestTree(t)
	if err := tr.Create(RootID, "f", 20, 3, 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	snap := tr.Snapshot()

	if err := tr.SetSize(20, 4096, 5); err != nil {
		t.Fatalf("SetSize: %v", err)
	}
	if err := tr.Mkdir(RootID, "d", 21, 5); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	a, _ := snap.Fattr(20)
	if a.FileSize != 0 {
		t.Errorf("snapshot saw size %d", a.FileSize)
	}
	if _, ok := snap.Lookup(RootID, "d"); ok {
		t.Error("snapshot saw later mkdir")
	}
	if snap.FileIDSeed() != 20 {
		t.Errorf("snapshot seed = %d", snap.FileIDSeed())
	}
	a, _ = tr.Fattr(20)
	if a.FileSize != 4096 {
		t.Errorf("tree size = %d", a.FileSize)
	}
}

func TestTree_MutationErrors(t *testing.T) {
	tr := newTestTree(t)
	if err := tr.Mkdir(RootID, "d", 10, 1); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := tr.Create(10, "f", 11, 1, 1); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name string
		err  error
		want *domain.DomainError
	}{
		{"duplicate name", tr.Mkdir(RootID, "d", 12, 1), domain.ErrExists},
		{"duplicate id", tr.Mkdir(RootID, "e", 10, 1), domain.ErrExists},
		{"bad name", tr.Mkdir(RootID, "a/b", 13, 1), domain.ErrInvalidArgument},
		{"parent missing", tr.Mkdir(99, "x", 14, 1), domain.ErrNotFound},
		{"parent is file", tr.Create(11, "x", 15, 1, 1), domain.ErrInvalidArgument},
		{"chunk on dir", tr.AllocateChunk(10, 0, 1, 1), domain.ErrInvalidArgument},
		{"unknown chunk", tr.SetChunkVersion(11, 5, 2), domain.ErrNotFound},
		{"negative size", tr.SetSize(11, -1, 1), domain.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Fatalf("err = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if _, err := tr.Remove(RootID, "d", 2); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("Remove non-empty dir = %v", err)
	}
}

func TestTree_RemoveReturnsChunks(t *testing.T) {
	tr := newTestTree(t)
	if err := tr.Create(RootID, "f", 30, 3, 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tr.AllocateChunk(30, 0, 7, 1); err != nil {
		t.Fatalf("AllocateChunk: %v", err)
	}
	if err := tr.SetChunkVersion(30, 7, 2); err != nil {
		t.Fatalf("SetChunkVersion: %v", err)
	}

	chunks, err := tr.Remove(RootID, "f", 9)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(chunks) != 1 || chunks[0].ChunkID != 7 || chunks[0].ChunkVersion != 2 {
		t.Fatalf("chunks = %+v", chunks)
	}
	if tr.Len() != 1 {
		t.Fatalf("Len after remove = %d, want 1 (root)", tr.Len())
	}
	root, _ := tr.Fattr(RootID)
	if root.Mtime != 9 {
		t.Fatalf("root mtime = %d", root.Mtime)
	}
	if tr.Bootstrap(10) {
		t.Fatal("Bootstrap on non-empty tree returned true")
	}
}

func TestTree_InsertDuplicate(t *testing.T) {
	tr := New(1, time.Now())
	leaf := ChunkInfo{Fid: 3, ChunkID: 9, Offset: 0, ChunkVersion: 1}
	if err := tr.Insert(leaf); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Insert(leaf); !errors.Is(err, domain.ErrExists) {
		t.Fatalf("second Insert = %v, want ErrExists", err)
	}
	if tr.ChunkIDSeed() != 9 {
		t.Fatalf("ChunkIDSeed = %d", tr.ChunkIDSeed())
	}
}
