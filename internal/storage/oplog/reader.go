package oplog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
	"github.com/yndnr/chunkmeta-go/pkg/crypto/adaptive"
)

// Reader reads log entries across all segments in order.
//
// Every segment but the last must carry a valid checksum trailer. The last
// segment may be open; a torn frame at its end terminates the stream.
type Reader struct {
	dir    string
	cipher adaptive.Cipher

	segments []segmentInfo
	segIndex int

	file   *os.File
	reader *bufio.Reader
	last   bool // current segment is the newest one
	name   string
}

// NewReader creates a log reader for dir.
func NewReader(dir string, cipher adaptive.Cipher) (*Reader, error) {
	segs, err := listSegments(dir)
	if err != nil {
		return nil, err
	}
	return &Reader{dir: dir, cipher: cipher, segments: segs}, nil
}

// Segments returns the names of the segments found when the reader was
// created, oldest first.
func (r *Reader) Segments() []string {
	out := make([]string, len(r.segments))
	for i, s := range r.segments {
		out[i] = SegmentName(s.id)
	}
	return out
}

// Seek positions the reader at the first segment whose id is not below
// the id of the named segment.
func (r *Reader) Seek(name string) error {
	id, ok := ParseSegmentName(name)
	if !ok {
		return domain.ErrInvalidArgument.WithDetails("log segment name " + name)
	}
	i := 0
	for ; i < len(r.segments); i++ {
		if r.segments[i].id >= id {
			break
		}
	}
	r.closeCurrent()
	r.segIndex = i
	return nil
}

// Segment returns the name of the segment the last entry was read from.
func (r *Reader) Segment() string {
	return r.name
}

// Read returns the next entry, or io.EOF at the end of the log.
func (r *Reader) Read() (*Entry, error) {
	for {
		if r.reader == nil {
			if err := r.openNextSegment(); err != nil {
				return nil, err
			}
		}

		e, err := r.readOneEntry()
		if err == nil {
			return e, nil
		}
		if errors.Is(err, io.EOF) {
			r.closeCurrent()
			continue
		}
		torn := errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrCorruptedEntry) || errors.Is(err, ErrChecksumMismatch)
		if torn && r.last {
			r.closeCurrent()
			r.segIndex = len(r.segments)
			return nil, io.EOF
		}
		if torn || errors.Is(err, ErrInvalidOp) {
			return nil, domain.ErrLogChecksum.WithCause(fmt.Errorf("%s: %w", r.name, err))
		}
		return nil, err
	}
}

// ReadAll reads all remaining entries.
func (r *Reader) ReadAll() ([]*Entry, error) {
	var out []*Entry
	for {
		e, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		out = append(out, e)
	}
}

// Close closes any open segment file.
func (r *Reader) Close() error {
	return r.closeCurrent()
}

func (r *Reader) openNextSegment() error {
	r.closeCurrent()

	if r.segIndex >= len(r.segments) {
		return io.EOF
	}

	seg := r.segments[r.segIndex]
	r.segIndex++
	last := r.segIndex == len(r.segments)
	name := SegmentName(seg.id)

	f, err := os.Open(seg.path)
	if err != nil {
		return fmt.Errorf("oplog: open %s: %w", name, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("oplog: stat %s: %w", name, err)
	}

	closed, dataLen, err := verifyChecksumTrailer(f, stat.Size())
	if err != nil {
		f.Close()
		return domain.ErrLogChecksum.WithCause(fmt.Errorf("%s: %w", name, err))
	}
	if !closed {
		if !last {
			f.Close()
			return domain.ErrLogChecksum.WithCause(fmt.Errorf("%s: missing or invalid trailer", name))
		}
		dataLen = stat.Size()
	}
	if dataLen < MagicBytesSize {
		f.Close()
		if last {
			// Created but the magic never reached disk.
			r.segIndex = len(r.segments)
			return io.EOF
		}
		return domain.ErrLogChecksum.WithCause(fmt.Errorf("%s: truncated", name))
	}

	r.file = f
	r.last = last
	r.name = name
	r.reader = bufio.NewReader(io.NewSectionReader(f, MagicBytesSize, dataLen-MagicBytesSize))
	return nil
}

func (r *Reader) closeCurrent() error {
	r.reader = nil
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

func (r *Reader) readOneEntry() (*Entry, error) {
	var lenBuf [4]byte
	n, err := io.ReadFull(r.reader, lenBuf[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, io.ErrUnexpectedEOF
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length < 5 || length > maxFrameSize {
		return nil, ErrCorruptedEntry
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r.reader, frame); err != nil {
		return nil, io.ErrUnexpectedEOF
	}

	return decodeEntryFrame(frame, r.cipher)
}
