package metatree

import (
	"fmt"
	"strings"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
)

// Default attributes for new entries.
const (
	DefaultDirMode  uint16 = 0o755
	DefaultFileMode uint16 = 0o644
)

// Bootstrap creates the root directory when the tree is empty. It reports
// whether the root was created.
func (t *Tree) Bootstrap(mtime int64) bool {
	if !t.Empty() {
		return false
	}
	t.leaves.ReplaceOrInsert(Fattr{
		Type:  TypeDir,
		ID:    RootID,
		Mtime: mtime,
		Ctime: mtime,
		Mode:  DefaultDirMode,
	})
	t.bumpFileID(RootID)
	return true
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("invalid name %q", name))
	}
	return nil
}

func (t *Tree) dir(id int64) (Fattr, error) {
	a, ok := t.Fattr(id)
	if !ok {
		return Fattr{}, domain.ErrNotFound.WithDetails(fmt.Sprintf("id %d", id))
	}
	if !a.IsDir() {
		return Fattr{}, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("id %d is not a directory", id))
	}
	return a, nil
}

func (t *Tree) file(id int64) (Fattr, error) {
	a, ok := t.Fattr(id)
	if !ok {
		return Fattr{}, domain.ErrNotFound.WithDetails(fmt.Sprintf("id %d", id))
	}
	if a.IsDir() {
		return Fattr{}, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("id %d is a directory", id))
	}
	return a, nil
}

func (t *Tree) link(parent int64, name string, attr Fattr) error {
	if err := validName(name); err != nil {
		return err
	}
	p, err := t.dir(parent)
	if err != nil {
		return err
	}
	if _, ok := t.Lookup(parent, name); ok {
		return domain.ErrExists.WithDetails(fmt.Sprintf("%q in %d", name, parent))
	}
	if _, ok := t.Fattr(attr.ID); ok {
		return domain.ErrExists.WithDetails(fmt.Sprintf("id %d", attr.ID))
	}
	t.leaves.ReplaceOrInsert(attr)
	t.leaves.ReplaceOrInsert(Dentry{Name: name, ID: attr.ID, Parent: parent})
	p.Mtime = attr.Mtime
	t.leaves.ReplaceOrInsert(p)
	t.bumpFileID(attr.ID)
	return nil
}

// Mkdir creates directory name with the given id inside parent.
func (t *Tree) Mkdir(parent int64, name string, id, mtime int64) error {
	return t.link(parent, name, Fattr{
		Type:  TypeDir,
		ID:    id,
		Mtime: mtime,
		Ctime: mtime,
		Mode:  DefaultDirMode,
	})
}

// Create creates an empty file name with the given id inside parent.
func (t *Tree) Create(parent int64, name string, id int64, replicas int16, mtime int64) error {
	return t.link(parent, name, Fattr{
		Type:        TypeFile,
		ID:          id,
		NumReplicas: replicas,
		Mtime:       mtime,
		Ctime:       mtime,
		Mode:        DefaultFileMode,
	})
}

// Remove unlinks name from parent. Directories must be empty. The chunks
// of a removed file are returned so callers can schedule their deletion.
func (t *Tree) Remove(parent int64, name string, mtime int64) ([]ChunkInfo, error) {
	d, ok := t.Lookup(parent, name)
	if !ok {
		return nil, domain.ErrNotFound.WithDetails(fmt.Sprintf("%q in %d", name, parent))
	}
	attr, ok := t.Fattr(d.ID)
	if !ok {
		return nil, domain.ErrNotFound.WithDetails(fmt.Sprintf("id %d", d.ID))
	}
	if attr.IsDir() && len(t.Children(d.ID)) > 0 {
		return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("directory %d not empty", d.ID))
	}
	chunks := t.Chunks(d.ID)
	for _, c := range chunks {
		t.leaves.Delete(c)
	}
	t.leaves.Delete(attr)
	t.leaves.Delete(d)
	if p, ok := t.Fattr(parent); ok {
		p.Mtime = mtime
		t.leaves.ReplaceOrInsert(p)
	}
	return chunks, nil
}

// AllocateChunk maps offset of file fid to a new chunk.
func (t *Tree) AllocateChunk(fid, offset, chunkID, version int64) error {
	a, err := t.file(fid)
	if err != nil {
		return err
	}
	if _, ok := t.leaves.Get(ChunkInfo{Fid: fid, Offset: offset}); ok {
		return domain.ErrExists.WithDetails(fmt.Sprintf("chunk at offset %d of %d", offset, fid))
	}
	t.leaves.ReplaceOrInsert(ChunkInfo{Fid: fid, ChunkID: chunkID, Offset: offset, ChunkVersion: version})
	a.ChunkCount++
	t.leaves.ReplaceOrInsert(a)
	t.bumpChunkID(chunkID)
	return nil
}

// SetChunkVersion updates the version of chunkID belonging to fid.
func (t *Tree) SetChunkVersion(fid, chunkID, version int64) error {
	for _, c := range t.Chunks(fid) {
		if c.ChunkID == chunkID {
			c.ChunkVersion = version
			t.leaves.ReplaceOrInsert(c)
			return nil
		}
	}
	return domain.ErrNotFound.WithDetails(fmt.Sprintf("chunk %d of %d", chunkID, fid))
}

// SetSize records the logical size of file fid.
func (t *Tree) SetSize(fid, size, mtime int64) error {
	if size < 0 {
		return domain.ErrInvalidArgument.WithDetails("negative size")
	}
	a, err := t.file(fid)
	if err != nil {
		return err
	}
	a.FileSize = size
	a.Mtime = mtime
	t.leaves.ReplaceOrInsert(a)
	return nil
}
