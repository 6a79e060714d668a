// Package mdstream provides the checksummed output stream that checkpoint
// files are written through, and the matching verifier.
//
// Every byte written updates a running SHA-256 digest. Writes are buffered
// and the first I/O error is sticky: later writes are dropped and the error
// is reported by Err, so callers check once per logical record instead of
// once per byte.
package mdstream

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
)

// DefaultBufferSize is used when NewWriter is given a non-positive size.
const DefaultBufferSize = 1 << 20

// TrailerPrefix starts the final line of a checksummed file.
const TrailerPrefix = "checksum/"

// ErrDetached is returned by writes after Detach.
var ErrDetached = errors.New("mdstream: writer detached")

// Writer is a buffered, digesting writer.
type Writer struct {
	bw       *bufio.Writer
	h        hash.Hash
	n        int64
	err      error
	detached bool
}

// NewWriter wraps w with a buffer of bufSize bytes.
func NewWriter(w io.Writer, bufSize int) *Writer {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Writer{
		bw: bufio.NewWriterSize(w, bufSize),
		h:  sha256.New(),
	}
}

// Write implements io.Writer. After the first failure it returns the
// sticky error without writing.
func (w *Writer) Write(p []byte) (int, error) {
	if w.detached {
		return 0, ErrDetached
	}
	if w.err != nil {
		return 0, w.err
	}
	w.h.Write(p)
	n, err := w.bw.Write(p)
	w.n += int64(n)
	if err != nil {
		w.err = err
	}
	return n, err
}

// WriteString implements io.StringWriter.
func (w *Writer) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Err returns the first write error, if any.
func (w *Writer) Err() error {
	return w.err
}

// Written returns the number of bytes accepted so far.
func (w *Writer) Written() int64 {
	return w.n
}

// Digest returns the lowercase hex SHA-256 of all bytes written so far.
func (w *Writer) Digest() string {
	return hex.EncodeToString(w.h.Sum(nil))
}

// WriteTrailer writes the checksum line for everything written before it.
func (w *Writer) WriteTrailer() error {
	_, err := w.WriteString(TrailerPrefix + w.Digest() + "\n")
	return err
}

// Detach flushes buffered bytes to the underlying writer and disconnects
// from it. It returns the sticky error or the flush error.
func (w *Writer) Detach() error {
	if w.detached {
		return w.err
	}
	w.detached = true
	if w.err != nil {
		return w.err
	}
	if err := w.bw.Flush(); err != nil {
		w.err = err
	}
	return w.err
}
