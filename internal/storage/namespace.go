package storage

import (
	"context"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
	"github.com/yndnr/chunkmeta-go/internal/core/metatree"
	"github.com/yndnr/chunkmeta-go/internal/core/sections"
)

// Mkdir creates directory name inside parent and returns its id.
func (e *Engine) Mkdir(ctx context.Context, req Request, parent int64, name string) (int64, error) {
	m := &mkdirOp{Request: req, Parent: parent, Name: name}
	if err := e.do(ctx, m); err != nil {
		return 0, err
	}
	return m.ID, nil
}

// Create creates an empty file inside parent and returns its id.
func (e *Engine) Create(ctx context.Context, req Request, parent int64, name string, replicas int16) (int64, error) {
	m := &createOp{Request: req, Parent: parent, Name: name, Replicas: replicas}
	if err := e.do(ctx, m); err != nil {
		return 0, err
	}
	return m.ID, nil
}

// Remove unlinks name from parent. The chunks of a removed file are
// returned; callers schedule their deletion with EnqueueObjStoreDelete or
// the chunk servers.
func (e *Engine) Remove(ctx context.Context, req Request, parent int64, name string) ([]metatree.ChunkInfo, error) {
	m := &removeOp{Request: req, Parent: parent, Name: name}
	if err := e.do(ctx, m); err != nil {
		return nil, err
	}
	return m.chunks, nil
}

// AllocateChunk maps offset of file fid to a new chunk and returns the
// chunk id.
func (e *Engine) AllocateChunk(ctx context.Context, req Request, fid, offset int64) (int64, error) {
	m := &allocateChunkOp{Request: req, Fid: fid, Offset: offset}
	if err := e.do(ctx, m); err != nil {
		return 0, err
	}
	return m.ChunkID, nil
}

// SetSize records the logical size of file fid.
func (e *Engine) SetSize(ctx context.Context, req Request, fid, size int64) error {
	return e.do(ctx, &setSizeOp{Request: req, Fid: fid, Size: size})
}

// SetChunkVersion sets the version of a chunk directly, outside a version
// change.
func (e *Engine) SetChunkVersion(ctx context.Context, fid, chunkID, version int64) error {
	return e.do(ctx, &setChunkVersionOp{Fid: fid, ChunkID: chunkID, Version: version})
}

// BeginMakeStable records a pending make-stable of a chunk.
func (e *Engine) BeginMakeStable(ctx context.Context, entry sections.MakeStableEntry) error {
	return e.do(ctx, &makeStableBeginOp{Entry: entry})
}

// DoneMakeStable completes the pending make-stable of chunkID.
func (e *Engine) DoneMakeStable(ctx context.Context, chunkID int64) error {
	return e.do(ctx, &makeStableDoneOp{ChunkID: chunkID})
}

// BeginVersionChange records a pending version bump. A zero FromVersion
// is taken from the chunk's current version.
func (e *Engine) BeginVersionChange(ctx context.Context, change sections.VersionChange) error {
	return e.do(ctx, &versionChangeBeginOp{Change: change})
}

// DoneVersionChange applies the pending version bump of chunkID to the
// tree.
func (e *Engine) DoneVersionChange(ctx context.Context, chunkID int64) error {
	return e.do(ctx, &versionChangeDoneOp{ChunkID: chunkID})
}

// CancelToken records tok as canceled until it expires.
func (e *Engine) CancelToken(ctx context.Context, tok domain.DelegationToken) error {
	return e.do(ctx, &tokenCancelOp{Token: tok.String()})
}

// SetGroup adds or replaces a group.
func (e *Engine) SetGroup(ctx context.Context, g sections.Group) error {
	return e.do(ctx, &groupSetOp{Group: g})
}

// DeleteGroup removes group gid.
func (e *Engine) DeleteGroup(ctx context.Context, gid uint32) error {
	return e.do(ctx, &groupDeleteOp{GID: gid})
}

// EnqueueObjStoreDelete queues the object store blocks of a removed file
// for deletion.
func (e *Engine) EnqueueObjStoreDelete(ctx context.Context, d sections.ObjStoreDelete) error {
	return e.do(ctx, &objStoreEnqueueOp{Delete: d})
}

// DoneObjStoreDelete removes fid from the delete queue.
func (e *Engine) DoneObjStoreDelete(ctx context.Context, fid int64) error {
	return e.do(ctx, &objStoreDoneOp{Fid: fid})
}

// Lookup resolves name inside parent.
func (e *Engine) Lookup(parent int64, name string) (metatree.Fattr, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.st.tree == nil {
		return metatree.Fattr{}, domain.ErrNotFound
	}
	d, ok := e.st.tree.Lookup(parent, name)
	if !ok {
		return metatree.Fattr{}, domain.ErrNotFound.WithDetails(name)
	}
	a, ok := e.st.tree.Fattr(d.ID)
	if !ok {
		return metatree.Fattr{}, domain.ErrNotFound.WithDetails(name)
	}
	return a, nil
}

// Attr returns the attributes of id.
func (e *Engine) Attr(id int64) (metatree.Fattr, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.st.tree == nil {
		return metatree.Fattr{}, false
	}
	return e.st.tree.Fattr(id)
}

// ReadDir returns the entries of directory id.
func (e *Engine) ReadDir(id int64) []metatree.Dentry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.st.tree == nil {
		return nil
	}
	return e.st.tree.Children(id)
}

// Chunks returns the chunks of file fid ordered by offset.
func (e *Engine) Chunks(fid int64) []metatree.ChunkInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.st.tree == nil {
		return nil
	}
	return e.st.tree.Chunks(fid)
}

// Snapshot returns point-in-time copies of the tree and sections.
func (e *Engine) Snapshot() (*metatree.Tree, *sections.Set) {
	// Tree clones mutate copy-on-write bookkeeping, so take the lock
	// exclusively.
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.st.tree == nil {
		return nil, nil
	}
	return e.st.tree.Snapshot(), e.st.sets.Snapshot()
}
