package record

import (
	"errors"
	"testing"
	"time"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
)

func TestBuilderFields_RoundTrip(t *testing.T) {
	line := NewBuilder("chunkinfo").
		KHex("fid", 42).
		KUhex("chunkid", 7).
		KHex("offset", -1).
		Str("name").Name("a/b c%\n").
		Bool(true).
		String()

	want := "chunkinfo/fid/2a/chunkid/7/offset/-1/name/a%2Fb%20c%25%0A/1"
	if line != want {
		t.Fatalf("line = %q, want %q", line, want)
	}

	f := Parse(line)
	f.Expect("chunkinfo")
	fid := f.KHex("fid")
	cid := f.KUhex("chunkid")
	off := f.KHex("offset")
	f.Expect("name")
	name := f.Name()
	flag := f.Bool()
	if err := f.Done(); err != nil {
		t.Fatalf("Done: %v", err)
	}
	if fid != 42 || cid != 7 || off != -1 || name != "a/b c%\n" || !flag {
		t.Fatalf("got fid=%d cid=%d off=%d name=%q flag=%v", fid, cid, off, name, flag)
	}
}

func TestFields_Errors(t *testing.T) {
	tests := []struct {
		name string
		fn   func(f *Fields)
		line string
	}{
		{"wrong key", func(f *Fields) { f.KHex("fid") }, "id/1"},
		{"bad hex", func(f *Fields) { f.KHex("fid") }, "fid/xyz"},
		{"missing", func(f *Fields) { f.KHex("fid") }, "fid"},
		{"trailing", func(f *Fields) { f.KHex("fid") }, "fid/1/extra"},
		{"bad bool", func(f *Fields) { f.Bool() }, "7"},
		{"empty bool", func(f *Fields) { f.KStr("hasChecksum"); f.Bool() }, "hasChecksum/0/"},
		{"uint32 overflow", func(f *Fields) { f.KUhexN("uid", 32) }, "uid/100000000"},
		{"uint16 overflow", func(f *Fields) { f.KUhexN("mode", 16) }, "mode/10000"},
		{"int16 overflow", func(f *Fields) { f.KHexN("numReplicas", 16) }, "numReplicas/8000"},
		{"int16 underflow", func(f *Fields) { f.KHexN("numReplicas", 16) }, "numReplicas/-8001"},
		{"negative unsigned", func(f *Fields) { f.KUhexN("uid", 32) }, "uid/-1"},
		{"bad escape", func(f *Fields) { f.Name() }, "%zz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Parse(tt.line)
			tt.fn(f)
			if err := f.Done(); !errors.Is(err, domain.ErrMalformed) {
				t.Fatalf("Done() = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestFields_SizedBounds(t *testing.T) {
	f := Parse("uid/ffffffff/mode/ffff/numReplicas/7fff/min/-8000")
	uid := f.KUhexN("uid", 32)
	mode := f.KUhexN("mode", 16)
	hi := f.KHexN("numReplicas", 16)
	lo := f.KHexN("min", 16)
	if err := f.Done(); err != nil {
		t.Fatalf("Done: %v", err)
	}
	if uid != 0xffffffff || mode != 0xffff || hi != 0x7fff || lo != -0x8000 {
		t.Fatalf("got uid=%x mode=%x hi=%d lo=%d", uid, mode, hi, lo)
	}
}

func TestPrefix(t *testing.T) {
	if got := Prefix("mkstable/end"); got != "mkstable" {
		t.Errorf("Prefix = %q", got)
	}
	if got := Prefix("time"); got != "time" {
		t.Errorf("Prefix = %q", got)
	}
}

func TestTime_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 9, 10, 11, 12, 345678000, time.UTC)
	s := FormatTime(ts)
	if s != "2024-03-09T10:11:12.345678Z" {
		t.Fatalf("FormatTime = %q", s)
	}
	got, err := ParseTime(s)
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if !got.Equal(ts) {
		t.Fatalf("ParseTime = %v, want %v", got, ts)
	}
	if _, err := ParseTime("yesterday"); !errors.Is(err, domain.ErrMalformed) {
		t.Fatalf("ParseTime(bad) = %v", err)
	}
}
