// Package mdstream provides the checksummed output stream that checkpoint
// files are written through, and the matching verifier.
package mdstream

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
)

// Verify reads r to the end, treating the last line as the checksum
// trailer, and checks it against the SHA-256 of every preceding byte.
//
// It returns the computed digest. A missing or malformed trailer is
// ErrMalformed, a mismatch is ErrChecksumMismatch. Read failures are
// returned wrapped and are not integrity errors.
func Verify(r io.Reader) (string, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	h := sha256.New()

	var pending []byte
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if pending != nil {
				h.Write(pending)
			}
			pending = line
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("mdstream: read: %w", err)
		}
	}

	trailer := bytes.TrimSuffix(pending, []byte("\n"))
	if !bytes.HasPrefix(trailer, []byte(TrailerPrefix)) {
		return "", domain.ErrMalformed.WithDetails("missing checksum trailer")
	}
	want := string(trailer[len(TrailerPrefix):])
	got := hex.EncodeToString(h.Sum(nil))
	if want != got {
		return got, domain.ErrChecksumMismatch.WithDetails(fmt.Sprintf("stored %s, computed %s", want, got))
	}
	return got, nil
}
