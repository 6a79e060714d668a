// Package sections implements the auxiliary state that the checkpoint
// carries after the tree leaves, one self-terminated section per owning
// subsystem.
package sections

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// LineReader reads newline delimited lines with one line of lookahead.
type LineReader struct {
	r       *bufio.Reader
	peeked  string
	hasPeek bool
	err     error
	lineNo  int
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	if br, ok := r.(*bufio.Reader); ok {
		return &LineReader{r: br}
	}
	return &LineReader{r: bufio.NewReaderSize(r, 64<<10)}
}

func (lr *LineReader) read() (string, error) {
	if lr.err != nil {
		return "", lr.err
	}
	s, err := lr.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) || s == "" {
			lr.err = err
			return "", err
		}
		// Final line without a newline.
		lr.err = io.EOF
	}
	return strings.TrimSuffix(s, "\n"), nil
}

// Next returns the next line without its newline. It returns io.EOF once
// the input is exhausted.
func (lr *LineReader) Next() (string, error) {
	if lr.hasPeek {
		lr.hasPeek = false
		lr.lineNo++
		return lr.peeked, nil
	}
	s, err := lr.read()
	if err != nil {
		return "", err
	}
	lr.lineNo++
	return s, nil
}

// Peek returns the next line without consuming it.
func (lr *LineReader) Peek() (string, error) {
	if lr.hasPeek {
		return lr.peeked, nil
	}
	s, err := lr.read()
	if err != nil {
		return "", err
	}
	lr.peeked, lr.hasPeek = s, true
	return s, nil
}

// LineNo returns the number of lines consumed so far.
func (lr *LineReader) LineNo() int {
	return lr.lineNo
}
