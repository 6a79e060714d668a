// Package checkpoint writes and loads metadata checkpoints.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
	"github.com/yndnr/chunkmeta-go/internal/core/metatree"
	"github.com/yndnr/chunkmeta-go/internal/core/record"
	"github.com/yndnr/chunkmeta-go/internal/core/sections"
	"github.com/yndnr/chunkmeta-go/internal/storage/mdstream"
)

// Result is a fully loaded checkpoint.
type Result struct {
	Header   Header
	Tree     *metatree.Tree
	Sections *sections.Set
	Info     *Info

	// Absent lists sections the checkpoint predates; they are left empty.
	Absent []string

	// Skipped lists newer checkpoints LoadLatest rejected as corrupt.
	Skipped []string
}

// Load verifies and parses the checkpoint at path.
//
// Integrity failures are reported as ErrChecksumMismatch,
// ErrUnsupportedVersion or ErrMalformed (see domain.IsIntegrity); failures
// to read the file are ErrCheckpointIO.
func Load(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.ErrCheckpointIO.WithDetails(path).WithCause(err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, domain.ErrCheckpointIO.WithDetails(path).WithCause(err)
	}

	digest, err := mdstream.Verify(f)
	if err != nil {
		if domain.IsIntegrity(err) {
			return nil, fmt.Errorf("checkpoint: %s: %w", path, err)
		}
		return nil, domain.ErrCheckpointIO.WithDetails(path).WithCause(err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, domain.ErrCheckpointIO.WithDetails(path).WithCause(err)
	}

	r := sections.NewLineReader(f)
	res, err := parse(r)
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) {
			return nil, fmt.Errorf("checkpoint: %s line %d: %w", path, r.LineNo(), err)
		}
		return nil, domain.ErrCheckpointIO.WithDetails(path).WithCause(err)
	}

	seq := res.Header.LogSeq
	if fileSeq, ok := ParseFileName(path); ok && fileSeq != seq {
		return nil, fmt.Errorf("checkpoint: %s: %w", path,
			domain.ErrMalformed.WithDetails(fmt.Sprintf("header seq %d does not match file name", seq)))
	}
	res.Info = &Info{
		Seq:         seq,
		Path:        path,
		Size:        st.Size(),
		ModTime:     st.ModTime(),
		Checksum:    digest,
		LogName:     res.Header.LogName,
		ErrChecksum: res.Header.ErrChecksum,
		Leaves:      res.Tree.Len(),
	}
	return res, nil
}

// LoadLatest loads the checkpoint the latest pointer in dir names. If it
// is missing or fails an integrity check, older checkpoints are tried
// newest first. ErrNoCheckpoint is returned when none loads.
func LoadLatest(dir string) (*Result, error) {
	var candidates []string
	if latest, err := Latest(dir); err == nil {
		candidates = append(candidates, latest)
	}
	infos, err := List(dir)
	if err != nil {
		return nil, err
	}
	for i := len(infos) - 1; i >= 0; i-- {
		if len(candidates) > 0 && infos[i].Path == candidates[0] {
			continue
		}
		candidates = append(candidates, infos[i].Path)
	}

	var skipped []string
	for _, path := range candidates {
		res, err := Load(path)
		if err == nil {
			res.Skipped = skipped
			res.Info.Latest = len(skipped) == 0
			return res, nil
		}
		if domain.IsIntegrity(err) || errors.Is(err, os.ErrNotExist) {
			skipped = append(skipped, path)
			continue
		}
		return nil, err
	}
	if len(skipped) > 0 {
		return nil, domain.ErrNoCheckpoint.WithDetails("no valid checkpoint in " + dir + ", rejected " + strings.Join(skipped, ", "))
	}
	return nil, domain.ErrNoCheckpoint.WithDetails(filepath.Clean(dir))
}

// ReadHeader verifies the checkpoint at path and returns its header
// without building the tree.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, domain.ErrCheckpointIO.WithDetails(path).WithCause(err)
	}
	defer f.Close()

	if _, err := mdstream.Verify(f); err != nil {
		if domain.IsIntegrity(err) {
			return Header{}, fmt.Errorf("checkpoint: %s: %w", path, err)
		}
		return Header{}, domain.ErrCheckpointIO.WithDetails(path).WithCause(err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Header{}, domain.ErrCheckpointIO.WithDetails(path).WithCause(err)
	}
	return parseHeader(sections.NewLineReader(f))
}

func malformed(format string, args ...any) error {
	return domain.ErrMalformed.WithDetails(fmt.Sprintf(format, args...))
}

// expect reads the next line and returns its fields after the leading key.
func expect(r *sections.LineReader, key string) (*record.Fields, error) {
	line, err := r.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, malformed("unexpected end of file, want %s", key)
		}
		return nil, err
	}
	f := record.Parse(line)
	if got := f.Next(); got != key {
		return nil, malformed("got %q, want %s", line, key)
	}
	return f, nil
}

func parseHeader(r *sections.LineReader) (Header, error) {
	var h Header

	f, err := expect(r, "checkpoint")
	if err != nil {
		return h, err
	}
	h.LogSeq = f.Dec()
	h.ErrChecksum = f.Dec()
	if err := f.Done(); err != nil {
		return h, err
	}

	if f, err = expect(r, "checksum"); err != nil {
		return h, err
	}
	f.Expect("last-line")
	if err := f.Done(); err != nil {
		return h, err
	}

	if f, err = expect(r, "version"); err != nil {
		return h, err
	}
	h.Version = int(f.Dec())
	if err := f.Done(); err != nil {
		return h, err
	}
	if h.Version != FormatVersion {
		return h, domain.ErrUnsupportedVersion.WithDetails(strconv.Itoa(h.Version))
	}

	if f, err = expect(r, "filesysteminfo"); err != nil {
		return h, err
	}
	f.Expect("fsid")
	h.FSID = f.Dec()
	crtime := f.KStr("crtime")
	if err := f.Done(); err != nil {
		return h, err
	}
	if h.Crtime, err = record.ParseTime(crtime); err != nil {
		return h, err
	}

	if f, err = expect(r, "fid"); err != nil {
		return h, err
	}
	h.FileIDSeed = f.Dec()
	if err := f.Done(); err != nil {
		return h, err
	}

	if f, err = expect(r, "chunkId"); err != nil {
		return h, err
	}
	h.ChunkIDSeed = f.Dec()
	if err := f.Done(); err != nil {
		return h, err
	}

	if h.Time, err = parseTimeLine(r); err != nil {
		return h, err
	}

	if f, err = expect(r, "setintbase"); err != nil {
		return h, err
	}
	f.Expect("16")
	if err := f.Done(); err != nil {
		return h, err
	}

	if f, err = expect(r, "log"); err != nil {
		return h, err
	}
	h.LogName = f.Next()
	if err := f.Done(); err != nil {
		return h, err
	}
	if h.LogName == "" {
		return h, malformed("empty log name")
	}

	blank, err := r.Next()
	if err != nil || blank != "" {
		return h, malformed("missing blank line after header")
	}
	return h, nil
}

func parseTimeLine(r *sections.LineReader) (ts time.Time, err error) {
	f, err := expect(r, "time")
	if err != nil {
		return ts, err
	}
	s := f.Next()
	if err := f.Done(); err != nil {
		return ts, err
	}
	return record.ParseTime(s)
}

func parse(r *sections.LineReader) (*Result, error) {
	h, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	tree := metatree.New(h.FSID, h.Crtime)
	for {
		line, err := r.Peek()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, malformed("unexpected end of file in leaves")
			}
			return nil, err
		}
		if !metatree.IsLeafLine(line) {
			break
		}
		_, _ = r.Next()
		leaf, err := metatree.ParseLeaf(line)
		if err != nil {
			return nil, err
		}
		if err := tree.Insert(leaf); err != nil {
			return nil, malformed("duplicate leaf %q", line)
		}
	}
	tree.SetSeeds(max(h.FileIDSeed, tree.FileIDSeed()), max(h.ChunkIDSeed, tree.ChunkIDSeed()))

	set := sections.NewSet()
	var absent []string
	for _, c := range set.Ordered() {
		if len(absent) > 0 {
			absent = append(absent, c.Name())
			continue
		}
		line, err := r.Peek()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, malformed("unexpected end of file before section %s", c.Name())
			}
			return nil, err
		}
		if record.Prefix(line) == "time" {
			absent = append(absent, c.Name())
			continue
		}
		if err := c.ReplaySection(r); err != nil {
			return nil, err
		}
	}

	if _, err := parseTimeLine(r); err != nil {
		return nil, err
	}
	// The trailer was verified; it must be the only line left.
	line, err := r.Next()
	if err != nil || !strings.HasPrefix(line, mdstream.TrailerPrefix) {
		return nil, malformed("expected checksum trailer")
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		return nil, malformed("data after checksum trailer")
	}

	return &Result{Header: h, Tree: tree, Sections: set, Absent: absent}, nil
}
