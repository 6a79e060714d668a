package output

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
)

const progressWidth = 30

// ProgressBar tracks a batch of files processed in order. Progress is
// weighted by size and redrawn in place on w, which is normally stderr.
type ProgressBar struct {
	mu sync.Mutex
	w  io.Writer

	label      string
	files      int
	totalBytes int64
	done       int
	doneBytes  int64
}

// NewProgressBar creates a bar for files totalling totalBytes.
func NewProgressBar(w io.Writer, label string, files int, totalBytes int64) *ProgressBar {
	return &ProgressBar{w: w, label: label, files: files, totalBytes: totalBytes}
}

// Step records one finished file of size bytes.
func (p *ProgressBar) Step(size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	p.doneBytes += size
	p.draw()
}

// Done draws the final state and ends the line.
func (p *ProgressBar) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.draw()
	fmt.Fprintln(p.w)
}

func (p *ProgressBar) draw() {
	frac := 1.0
	if p.totalBytes > 0 {
		frac = min(float64(p.doneBytes)/float64(p.totalBytes), 1)
	}
	n := int(frac * progressWidth)
	fmt.Fprintf(p.w, "\r%s %d/%d [%s%s] %s of %s",
		p.label, p.done, p.files,
		strings.Repeat("#", n), strings.Repeat(".", progressWidth-n),
		Bytes(p.doneBytes), Bytes(p.totalBytes))
}

// Bytes formats a size in IEC units, e.g. "1.5 KiB".
func Bytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}
