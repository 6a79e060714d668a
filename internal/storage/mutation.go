package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
	"github.com/yndnr/chunkmeta-go/internal/core/metatree"
	"github.com/yndnr/chunkmeta-go/internal/core/sections"
	"github.com/yndnr/chunkmeta-go/internal/storage/oplog"
)

// Status codes recorded with every log entry. Their sum is the error
// checksum stored in checkpoint headers.
const (
	StatusOK              int64 = 0
	StatusNotFound        int64 = -2
	StatusIO              int64 = -5
	StatusExists          int64 = -17
	StatusInvalidArgument int64 = -22
)

// StatusOf maps a mutation error to its logged status.
func StatusOf(err error) int64 {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, domain.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, domain.ErrExists):
		return StatusExists
	case errors.Is(err, domain.ErrInvalidArgument):
		return StatusInvalidArgument
	default:
		return StatusIO
	}
}

// StatusError is the inverse of StatusOf, used to answer duplicate
// requests with the outcome of the original.
func StatusError(status int64) error {
	switch status {
	case StatusOK:
		return nil
	case StatusNotFound:
		return domain.ErrNotFound.WithDetails("duplicate request")
	case StatusExists:
		return domain.ErrExists.WithDetails("duplicate request")
	case StatusInvalidArgument:
		return domain.ErrInvalidArgument.WithDetails("duplicate request")
	default:
		return fmt.Errorf("storage: duplicate request failed with status %d", status)
	}
}

// Request identifies a client request for duplicate suppression. The zero
// value means the mutation is not tracked.
type Request struct {
	ID  int64  `json:"req,omitempty"`
	UID uint32 `json:"uid,omitempty"`
}

func (r Request) request() Request { return r }

type untracked struct{}

func (untracked) request() Request { return Request{} }

// state is what log entries mutate.
type state struct {
	tree *metatree.Tree
	sets *sections.Set
}

// mutation is one loggable change. apply either changes nothing and
// returns an error, or fully succeeds. Fields left zero on the live path
// (ids, times) are filled in by apply before the mutation is logged, so
// replay sees the same values.
type mutation interface {
	op() oplog.Op
	request() Request
	apply(s *state, ts int64) error
}

func newMutation(op oplog.Op) (mutation, error) {
	switch op {
	case oplog.OpBootstrap:
		return &bootstrapOp{}, nil
	case oplog.OpMkdir:
		return &mkdirOp{}, nil
	case oplog.OpCreate:
		return &createOp{}, nil
	case oplog.OpRemove:
		return &removeOp{}, nil
	case oplog.OpAllocateChunk:
		return &allocateChunkOp{}, nil
	case oplog.OpSetChunkVersion:
		return &setChunkVersionOp{}, nil
	case oplog.OpSetSize:
		return &setSizeOp{}, nil
	case oplog.OpMakeStableBegin:
		return &makeStableBeginOp{}, nil
	case oplog.OpMakeStableDone:
		return &makeStableDoneOp{}, nil
	case oplog.OpVersionChangeBegin:
		return &versionChangeBeginOp{}, nil
	case oplog.OpVersionChangeDone:
		return &versionChangeDoneOp{}, nil
	case oplog.OpTokenCancel:
		return &tokenCancelOp{}, nil
	case oplog.OpTokenExpire:
		return &tokenExpireOp{}, nil
	case oplog.OpIdempotentExpire:
		return &idempotentExpireOp{}, nil
	case oplog.OpGroupSet:
		return &groupSetOp{}, nil
	case oplog.OpGroupDelete:
		return &groupDeleteOp{}, nil
	case oplog.OpObjStoreEnqueue:
		return &objStoreEnqueueOp{}, nil
	case oplog.OpObjStoreDone:
		return &objStoreDoneOp{}, nil
	}
	return nil, domain.ErrMalformed.WithDetails("unknown log op " + op.String())
}

func fill(v *int64, ts int64) {
	if *v == 0 {
		*v = ts
	}
}

type bootstrapOp struct {
	untracked
	FSID   int64 `json:"fsid"`
	Crtime int64 `json:"crtime"`
	Mtime  int64 `json:"mtime"`
}

func (*bootstrapOp) op() oplog.Op { return oplog.OpBootstrap }

func (m *bootstrapOp) apply(s *state, ts int64) error {
	fill(&m.Crtime, ts)
	fill(&m.Mtime, ts)
	if !s.tree.Empty() {
		return domain.ErrExists.WithDetails("root")
	}
	s.tree.SetFilesystemInfo(m.FSID, time.UnixMicro(m.Crtime).UTC())
	s.tree.Bootstrap(m.Mtime)
	return nil
}

type mkdirOp struct {
	Request
	Parent int64  `json:"parent"`
	Name   string `json:"name"`
	ID     int64  `json:"id"`
	Mtime  int64  `json:"mtime"`
}

func (*mkdirOp) op() oplog.Op { return oplog.OpMkdir }

func (m *mkdirOp) apply(s *state, ts int64) error {
	fill(&m.Mtime, ts)
	if m.ID == 0 {
		m.ID = s.tree.NextFileID()
	}
	return s.tree.Mkdir(m.Parent, m.Name, m.ID, m.Mtime)
}

type createOp struct {
	Request
	Parent   int64  `json:"parent"`
	Name     string `json:"name"`
	ID       int64  `json:"id"`
	Replicas int16  `json:"replicas"`
	Mtime    int64  `json:"mtime"`
}

func (*createOp) op() oplog.Op { return oplog.OpCreate }

func (m *createOp) apply(s *state, ts int64) error {
	fill(&m.Mtime, ts)
	if m.ID == 0 {
		m.ID = s.tree.NextFileID()
	}
	return s.tree.Create(m.Parent, m.Name, m.ID, m.Replicas, m.Mtime)
}

type removeOp struct {
	Request
	Parent int64  `json:"parent"`
	Name   string `json:"name"`
	Mtime  int64  `json:"mtime"`

	chunks []metatree.ChunkInfo
}

func (*removeOp) op() oplog.Op { return oplog.OpRemove }

func (m *removeOp) apply(s *state, ts int64) error {
	fill(&m.Mtime, ts)
	chunks, err := s.tree.Remove(m.Parent, m.Name, m.Mtime)
	m.chunks = chunks
	return err
}

type allocateChunkOp struct {
	Request
	Fid     int64 `json:"fid"`
	Offset  int64 `json:"offset"`
	ChunkID int64 `json:"chunk_id"`
	Version int64 `json:"version"`
}

func (*allocateChunkOp) op() oplog.Op { return oplog.OpAllocateChunk }

func (m *allocateChunkOp) apply(s *state, _ int64) error {
	if m.Offset < 0 {
		return domain.ErrInvalidArgument.WithDetails("negative offset")
	}
	if m.ChunkID == 0 {
		m.ChunkID = s.tree.NextChunkID()
	}
	if m.Version == 0 {
		m.Version = 1
	}
	return s.tree.AllocateChunk(m.Fid, m.Offset, m.ChunkID, m.Version)
}

type setChunkVersionOp struct {
	untracked
	Fid     int64 `json:"fid"`
	ChunkID int64 `json:"chunk_id"`
	Version int64 `json:"version"`
}

func (*setChunkVersionOp) op() oplog.Op { return oplog.OpSetChunkVersion }

func (m *setChunkVersionOp) apply(s *state, _ int64) error {
	return s.tree.SetChunkVersion(m.Fid, m.ChunkID, m.Version)
}

type setSizeOp struct {
	Request
	Fid   int64 `json:"fid"`
	Size  int64 `json:"size"`
	Mtime int64 `json:"mtime"`
}

func (*setSizeOp) op() oplog.Op { return oplog.OpSetSize }

func (m *setSizeOp) apply(s *state, ts int64) error {
	fill(&m.Mtime, ts)
	return s.tree.SetSize(m.Fid, m.Size, m.Mtime)
}

// chunkOf returns chunkID if it belongs to fid.
func chunkOf(t *metatree.Tree, fid, chunkID int64) (metatree.ChunkInfo, error) {
	for _, c := range t.Chunks(fid) {
		if c.ChunkID == chunkID {
			return c, nil
		}
	}
	return metatree.ChunkInfo{}, domain.ErrNotFound.WithDetails(fmt.Sprintf("chunk %d of %d", chunkID, fid))
}

type makeStableBeginOp struct {
	untracked
	Entry sections.MakeStableEntry `json:"entry"`
}

func (*makeStableBeginOp) op() oplog.Op { return oplog.OpMakeStableBegin }

func (m *makeStableBeginOp) apply(s *state, _ int64) error {
	if _, err := chunkOf(s.tree, m.Entry.Fid, m.Entry.ChunkID); err != nil {
		return err
	}
	if _, ok := s.sets.MakeStable.Get(m.Entry.ChunkID); ok {
		return domain.ErrExists.WithDetails(fmt.Sprintf("make stable of chunk %d", m.Entry.ChunkID))
	}
	s.sets.MakeStable.Begin(m.Entry)
	return nil
}

type makeStableDoneOp struct {
	untracked
	ChunkID int64 `json:"chunk_id"`
}

func (*makeStableDoneOp) op() oplog.Op { return oplog.OpMakeStableDone }

func (m *makeStableDoneOp) apply(s *state, _ int64) error {
	if !s.sets.MakeStable.Done(m.ChunkID) {
		return domain.ErrNotFound.WithDetails(fmt.Sprintf("make stable of chunk %d", m.ChunkID))
	}
	return nil
}

type versionChangeBeginOp struct {
	untracked
	Change sections.VersionChange `json:"change"`
}

func (*versionChangeBeginOp) op() oplog.Op { return oplog.OpVersionChangeBegin }

func (m *versionChangeBeginOp) apply(s *state, _ int64) error {
	c, err := chunkOf(s.tree, m.Change.Fid, m.Change.ChunkID)
	if err != nil {
		return err
	}
	if m.Change.FromVersion == 0 {
		m.Change.FromVersion = c.ChunkVersion
	}
	if m.Change.ToVersion <= m.Change.FromVersion {
		return domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("version %d does not advance %d", m.Change.ToVersion, m.Change.FromVersion))
	}
	if _, ok := s.sets.ChunkVersions.Get(m.Change.ChunkID); ok {
		return domain.ErrExists.WithDetails(fmt.Sprintf("version change of chunk %d", m.Change.ChunkID))
	}
	s.sets.ChunkVersions.Begin(m.Change)
	return nil
}

type versionChangeDoneOp struct {
	untracked
	ChunkID int64 `json:"chunk_id"`
}

func (*versionChangeDoneOp) op() oplog.Op { return oplog.OpVersionChangeDone }

func (m *versionChangeDoneOp) apply(s *state, _ int64) error {
	v, ok := s.sets.ChunkVersions.Get(m.ChunkID)
	if !ok {
		return domain.ErrNotFound.WithDetails(fmt.Sprintf("version change of chunk %d", m.ChunkID))
	}
	if err := s.tree.SetChunkVersion(v.Fid, v.ChunkID, v.ToVersion); err != nil {
		return err
	}
	s.sets.ChunkVersions.Done(m.ChunkID)
	return nil
}

type tokenCancelOp struct {
	untracked
	Token string `json:"token"`
}

func (*tokenCancelOp) op() oplog.Op { return oplog.OpTokenCancel }

func (m *tokenCancelOp) apply(s *state, _ int64) error {
	tok, err := domain.ParseDelegationToken(m.Token)
	if err != nil {
		return domain.ErrInvalidArgument.WithCause(err)
	}
	if s.sets.CanceledTokens.IsCanceled(tok) {
		return domain.ErrExists.WithDetails("token already canceled")
	}
	s.sets.CanceledTokens.Cancel(tok)
	return nil
}

type tokenExpireOp struct {
	untracked
	Now int64 `json:"now"` // unix seconds
}

func (*tokenExpireOp) op() oplog.Op { return oplog.OpTokenExpire }

func (m *tokenExpireOp) apply(s *state, ts int64) error {
	if m.Now == 0 {
		m.Now = ts / 1e6
	}
	s.sets.CanceledTokens.Expire(time.Unix(m.Now, 0))
	return nil
}

type idempotentExpireOp struct {
	untracked
	Before int64 `json:"before"` // microseconds
}

func (*idempotentExpireOp) op() oplog.Op { return oplog.OpIdempotentExpire }

func (m *idempotentExpireOp) apply(s *state, _ int64) error {
	s.sets.Idempotent.Expire(m.Before)
	return nil
}

type groupSetOp struct {
	untracked
	Group sections.Group `json:"group"`
}

func (*groupSetOp) op() oplog.Op { return oplog.OpGroupSet }

func (m *groupSetOp) apply(s *state, _ int64) error {
	if m.Group.Name == "" {
		return domain.ErrInvalidArgument.WithDetails("empty group name")
	}
	s.sets.Groups.Set(m.Group)
	return nil
}

type groupDeleteOp struct {
	untracked
	GID uint32 `json:"gid"`
}

func (*groupDeleteOp) op() oplog.Op { return oplog.OpGroupDelete }

func (m *groupDeleteOp) apply(s *state, _ int64) error {
	if !s.sets.Groups.Delete(m.GID) {
		return domain.ErrNotFound.WithDetails(fmt.Sprintf("group %d", m.GID))
	}
	return nil
}

type objStoreEnqueueOp struct {
	untracked
	Delete sections.ObjStoreDelete `json:"delete"`
}

func (*objStoreEnqueueOp) op() oplog.Op { return oplog.OpObjStoreEnqueue }

func (m *objStoreEnqueueOp) apply(s *state, ts int64) error {
	fill(&m.Delete.QueuedAt, ts)
	if m.Delete.Fid <= 0 || m.Delete.LastSize < 0 {
		return domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("object store delete of %d", m.Delete.Fid))
	}
	s.sets.ObjStoreDeletes.Enqueue(m.Delete)
	return nil
}

type objStoreDoneOp struct {
	untracked
	Fid int64 `json:"fid"`
}

func (*objStoreDoneOp) op() oplog.Op { return oplog.OpObjStoreDone }

func (m *objStoreDoneOp) apply(s *state, _ int64) error {
	if !s.sets.ObjStoreDeletes.Done(m.Fid) {
		return domain.ErrNotFound.WithDetails(fmt.Sprintf("object store delete of %d", m.Fid))
	}
	return nil
}
