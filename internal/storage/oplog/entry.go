// Package oplog provides the append-only mutation log of the metadata
// server.
package oplog

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// headerSize is the size of entry header: length (4) + crc (4) = 8 bytes.
	headerSize = 8

	// maxFrameSize bounds a single frame so a corrupt length cannot
	// trigger a huge allocation.
	maxFrameSize = 64 << 20
)

// Errors for frame decoding.
var (
	ErrCorruptedEntry   = errors.New("oplog: corrupted entry")
	ErrChecksumMismatch = errors.New("oplog: checksum mismatch")
	ErrInvalidOp        = errors.New("oplog: invalid op")
)

// Op identifies the mutation an entry records.
type Op uint8

const (
	OpUnspecified Op = iota
	OpBootstrap
	OpMkdir
	OpCreate
	OpRemove
	OpAllocateChunk
	OpSetChunkVersion
	OpSetSize
	OpMakeStableBegin
	OpMakeStableDone
	OpVersionChangeBegin
	OpVersionChangeDone
	OpTokenCancel
	OpTokenExpire
	OpIdempotentExpire
	OpGroupSet
	OpGroupDelete
	OpObjStoreEnqueue
	OpObjStoreDone

	opMax
)

var opNames = [...]string{
	OpUnspecified:        "unspecified",
	OpBootstrap:          "bootstrap",
	OpMkdir:              "mkdir",
	OpCreate:             "create",
	OpRemove:             "remove",
	OpAllocateChunk:      "allocate_chunk",
	OpSetChunkVersion:    "set_chunk_version",
	OpSetSize:            "set_size",
	OpMakeStableBegin:    "make_stable_begin",
	OpMakeStableDone:     "make_stable_done",
	OpVersionChangeBegin: "version_change_begin",
	OpVersionChangeDone:  "version_change_done",
	OpTokenCancel:        "token_cancel",
	OpTokenExpire:        "token_expire",
	OpIdempotentExpire:   "idempotent_expire",
	OpGroupSet:           "group_set",
	OpGroupDelete:        "group_delete",
	OpObjStoreEnqueue:    "objstore_enqueue",
	OpObjStoreDone:       "objstore_done",
}

func (o Op) String() string {
	if o < opMax {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Valid reports whether o is a known, specified op.
func (o Op) Valid() bool {
	return o > OpUnspecified && o < opMax
}

// Entry is one logged mutation.
type Entry struct {
	Seq       int64
	Op        Op
	Status    int64 // 0 on success, a negative error code otherwise
	Timestamp int64 // microseconds since epoch
	Data      json.RawMessage
}

// NewEntry creates an entry for op with data marshaled as JSON. Seq is
// assigned by the Coordinator.
func NewEntry(op Op, status int64, data any) (*Entry, error) {
	e := &Entry{
		Op:        op,
		Status:    status,
		Timestamp: time.Now().UnixMicro(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("oplog: marshal %s: %w", op, err)
		}
		e.Data = raw
	}
	return e, nil
}

// Decode unmarshals the entry data into v.
func (e *Entry) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("oplog: %s entry %d has no data", e.Op, e.Seq)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("oplog: decode %s entry %d: %w", e.Op, e.Seq, err)
	}
	return nil
}
