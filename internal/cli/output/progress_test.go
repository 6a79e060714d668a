package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, "Verifying", 2, 2048)

	bar.Step(1024)
	if bar.done != 1 || bar.doneBytes != 1024 {
		t.Errorf("after one step: done = %d, bytes = %d", bar.done, bar.doneBytes)
	}
	want := "\rVerifying 1/2 [" + strings.Repeat("#", 15) + strings.Repeat(".", 15) + "] 1.0 KiB of 2.0 KiB"
	if got := buf.String(); got != want {
		t.Errorf("render = %q, want %q", got, want)
	}

	bar.Step(1024)
	bar.Done()
	out := buf.String()
	if !strings.Contains(out, "2/2 ["+strings.Repeat("#", 30)+"]") || !strings.HasSuffix(out, "\n") {
		t.Errorf("Done() output = %q", out)
	}
}

func TestProgressBar_EmptyFiles(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, "Verifying", 1, 0)
	bar.Step(0)

	if got := buf.String(); !strings.Contains(got, "1/1 ["+strings.Repeat("#", 30)+"] 0 B of 0 B") {
		t.Errorf("render = %q", got)
	}
}

func TestBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{1 << 30, "1.0 GiB"},
		{-2048, "-2.0 KiB"},
	}
	for _, tt := range tests {
		if got := Bytes(tt.in); got != tt.want {
			t.Errorf("Bytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
