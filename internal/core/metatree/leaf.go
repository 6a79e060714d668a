// Package metatree provides the in-memory namespace and chunk mapping tree
// of the metadata server.
package metatree

import (
	"io"
	"strings"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
	"github.com/yndnr/chunkmeta-go/internal/core/record"
)

// Kind orders leaves owned by the same id.
type Kind uint8

const (
	KindFattr Kind = iota
	KindDentry
	KindChunkInfo
)

func (k Kind) String() string {
	switch k {
	case KindFattr:
		return "fattr"
	case KindDentry:
		return "dentry"
	case KindChunkInfo:
		return "chunkinfo"
	default:
		return "unknown"
	}
}

// Leaf is one record of the tree. Leaves are immutable values; mutations
// replace them.
type Leaf interface {
	Kind() Kind
	// Owner is the id the leaf sorts under: the file or directory id for
	// attributes and chunks, the parent directory id for entries.
	Owner() int64
	// Checkpoint writes the leaf as a single newline terminated line.
	Checkpoint(w io.Writer) error
}

// FileType distinguishes regular files from directories.
type FileType string

const (
	TypeFile FileType = "file"
	TypeDir  FileType = "dir"
)

// Fattr holds the attributes of a file or directory.
type Fattr struct {
	Type        FileType
	ID          int64
	ChunkCount  int64
	NumReplicas int16
	Mtime       int64 // microseconds since epoch
	Ctime       int64
	FileSize    int64
	User        uint32
	Group       uint32
	Mode        uint16
}

func (a Fattr) Kind() Kind   { return KindFattr }
func (a Fattr) Owner() int64 { return a.ID }

// IsDir reports whether the attributes describe a directory.
func (a Fattr) IsDir() bool { return a.Type == TypeDir }

func (a Fattr) Checkpoint(w io.Writer) error {
	line := record.NewBuilder("fattr", string(a.Type)).
		KHex("id", a.ID).
		KHex("chunkcount", a.ChunkCount).
		KHex("numReplicas", int64(a.NumReplicas)).
		KHex("mtime", a.Mtime).
		KHex("ctime", a.Ctime).
		KHex("filesize", a.FileSize).
		KUhex("user", uint64(a.User)).
		KUhex("group", uint64(a.Group)).
		KUhex("mode", uint64(a.Mode)).
		Line()
	_, err := io.WriteString(w, line)
	return err
}

// Dentry names a child id inside a parent directory.
type Dentry struct {
	Name   string
	ID     int64
	Parent int64
}

func (d Dentry) Kind() Kind   { return KindDentry }
func (d Dentry) Owner() int64 { return d.Parent }

func (d Dentry) Checkpoint(w io.Writer) error {
	line := record.NewBuilder("dentry").
		Str("name").Name(d.Name).
		KHex("id", d.ID).
		KHex("parent", d.Parent).
		Line()
	_, err := io.WriteString(w, line)
	return err
}

// ChunkInfo maps a file offset to a chunk.
type ChunkInfo struct {
	Fid          int64
	ChunkID      int64
	Offset       int64
	ChunkVersion int64
}

func (c ChunkInfo) Kind() Kind   { return KindChunkInfo }
func (c ChunkInfo) Owner() int64 { return c.Fid }

func (c ChunkInfo) Checkpoint(w io.Writer) error {
	line := record.NewBuilder("chunkinfo").
		KHex("fid", c.Fid).
		KHex("chunkid", c.ChunkID).
		KHex("offset", c.Offset).
		KHex("chunkVersion", c.ChunkVersion).
		Line()
	_, err := io.WriteString(w, line)
	return err
}

// IsLeafLine reports whether line carries one of the leaf prefixes.
func IsLeafLine(line string) bool {
	switch record.Prefix(line) {
	case "fattr", "dentry", "chunkinfo":
		return true
	}
	return false
}

// ParseLeaf parses a line written by Leaf.Checkpoint. The trailing newline
// is optional.
func ParseLeaf(line string) (Leaf, error) {
	line = strings.TrimSuffix(line, "\n")
	f := record.Parse(line)
	switch prefix := f.Next(); prefix {
	case "fattr":
		var a Fattr
		switch t := FileType(f.Next()); t {
		case TypeFile, TypeDir:
			a.Type = t
		default:
			return nil, domain.ErrMalformed.WithDetails("fattr type " + string(t))
		}
		a.ID = f.KHex("id")
		a.ChunkCount = f.KHex("chunkcount")
		a.NumReplicas = int16(f.KHexN("numReplicas", 16))
		a.Mtime = f.KHex("mtime")
		a.Ctime = f.KHex("ctime")
		a.FileSize = f.KHex("filesize")
		a.User = uint32(f.KUhexN("user", 32))
		a.Group = uint32(f.KUhexN("group", 32))
		a.Mode = uint16(f.KUhexN("mode", 16))
		if err := f.Done(); err != nil {
			return nil, err
		}
		return a, nil
	case "dentry":
		var d Dentry
		f.Expect("name")
		d.Name = f.Name()
		d.ID = f.KHex("id")
		d.Parent = f.KHex("parent")
		if err := f.Done(); err != nil {
			return nil, err
		}
		return d, nil
	case "chunkinfo":
		var c ChunkInfo
		c.Fid = f.KHex("fid")
		c.ChunkID = f.KHex("chunkid")
		c.Offset = f.KHex("offset")
		c.ChunkVersion = f.KHex("chunkVersion")
		if err := f.Done(); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, domain.ErrMalformed.WithDetails("not a leaf record: " + prefix)
	}
}

// less orders leaves by (owner, kind, name|offset).
func less(a, b Leaf) bool {
	if ao, bo := a.Owner(), b.Owner(); ao != bo {
		return ao < bo
	}
	if ak, bk := a.Kind(), b.Kind(); ak != bk {
		return ak < bk
	}
	switch x := a.(type) {
	case Dentry:
		return x.Name < b.(Dentry).Name
	case ChunkInfo:
		return x.Offset < b.(ChunkInfo).Offset
	}
	return false
}
