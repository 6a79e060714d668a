// Package sections implements the auxiliary state that the checkpoint
// carries after the tree leaves, one self-terminated section per owning
// subsystem.
package sections

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
	"github.com/yndnr/chunkmeta-go/internal/core/record"
)

// Contributor externalizes and restores the state of one subsystem.
//
// A section is a run of lines that all start with Name() followed by '/',
// closed by the terminator line Name()+"/end". WriteSection must emit the
// terminator; ReplaySection must consume it and nothing past it.
type Contributor interface {
	Name() string
	WriteSection(w io.Writer) error
	ReplaySection(r *LineReader) error
}

const endToken = "end"

// Terminator returns the line that closes the section of c.
func Terminator(c Contributor) string {
	return c.Name() + record.Sep + endToken
}

func writeEnd(w io.Writer, name string) error {
	_, err := io.WriteString(w, name+record.Sep+endToken+"\n")
	return err
}

// writeLines writes the entry lines then the terminator.
func writeLines(w io.Writer, name string, lines []string) error {
	for _, l := range lines {
		if _, err := io.WriteString(w, l); err != nil {
			return err
		}
	}
	return writeEnd(w, name)
}

// replayLines consumes lines of section name up to and including the
// terminator, calling apply with a cursor positioned after the prefix.
func replayLines(r *LineReader, name string, apply func(f *record.Fields) error) error {
	end := name + record.Sep + endToken
	for {
		line, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return domain.ErrMalformed.WithDetails(name + ": missing terminator")
			}
			return err
		}
		if line == end {
			return nil
		}
		if record.Prefix(line) != name {
			return domain.ErrMalformed.WithDetails(fmt.Sprintf("%s: foreign line %d %s", name, r.LineNo(), strconv.Quote(line)))
		}
		f := record.Parse(line)
		f.Expect(name)
		if err := apply(f); err != nil {
			return err
		}
		if err := f.Done(); err != nil {
			return err
		}
	}
}

// Set holds one instance of every contributor.
type Set struct {
	MakeStable      *MakeStable
	ChunkVersions   *ChunkVersions
	CanceledTokens  *CanceledTokens
	Idempotent      *IdempotentTracker
	Groups          *UserGroups
	ObjStoreDeletes *ObjStoreDeletes
}

// NewSet creates a set of empty contributors.
func NewSet() *Set {
	return &Set{
		MakeStable:      NewMakeStable(),
		ChunkVersions:   NewChunkVersions(),
		CanceledTokens:  NewCanceledTokens(),
		Idempotent:      NewIdempotentTracker(),
		Groups:          NewUserGroups(),
		ObjStoreDeletes: NewObjStoreDeletes(),
	}
}

// Ordered returns the contributors in checkpoint order. New contributors
// are only ever appended.
func (s *Set) Ordered() []Contributor {
	return []Contributor{
		s.MakeStable,
		s.ChunkVersions,
		s.CanceledTokens,
		s.Idempotent,
		s.Groups,
		s.ObjStoreDeletes,
	}
}

// Counts returns the number of entries held by each section, keyed by
// section name.
func (s *Set) Counts() map[string]int {
	return map[string]int{
		s.MakeStable.Name():      s.MakeStable.Len(),
		s.ChunkVersions.Name():   s.ChunkVersions.Len(),
		s.CanceledTokens.Name():  s.CanceledTokens.Len(),
		s.Idempotent.Name():      s.Idempotent.Len(),
		s.Groups.Name():          s.Groups.Len(),
		s.ObjStoreDeletes.Name(): s.ObjStoreDeletes.Len(),
	}
}

// Snapshot returns a deep copy of every contributor.
func (s *Set) Snapshot() *Set {
	return &Set{
		MakeStable:      s.MakeStable.Snapshot(),
		ChunkVersions:   s.ChunkVersions.Snapshot(),
		CanceledTokens:  s.CanceledTokens.Snapshot(),
		Idempotent:      s.Idempotent.Snapshot(),
		Groups:          s.Groups.Snapshot(),
		ObjStoreDeletes: s.ObjStoreDeletes.Snapshot(),
	}
}
