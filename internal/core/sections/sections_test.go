package sections

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
)

func populated() *Set {
	s := NewSet()
	s.MakeStable.Begin(MakeStableEntry{Fid: 42, ChunkID: 7, ChunkVersion: 3, Size: 1 << 20, Checksum: 0xdeadbeef, HasChecksum: true})
	s.MakeStable.Begin(MakeStableEntry{Fid: 43, ChunkID: 8, ChunkVersion: 1})
	s.ChunkVersions.Begin(VersionChange{Fid: 42, ChunkID: 7, FromVersion: 3, ToVersion: 4})
	s.CanceledTokens.Cancel(domain.DelegationToken{UID: 1000, Seq: 5, KeyID: 9, IssuedTime: 1700000000, ValidForSec: 3600, Signature: [20]byte{1, 2, 3}})
	s.Idempotent.Record(IdempotentRequest{ID: 77, Seq: 12, UID: 1000, Op: "create file", Status: 0, Time: 1700000000000000})
	s.Idempotent.Record(IdempotentRequest{ID: 3, Seq: 10, UID: 0, Op: "mkdir", Status: -17, Time: 1700000000000001})
	s.Groups.Set(Group{GID: 100, Name: "staff/ops", Members: []uint32{1002, 1000, 1000}})
	s.Groups.Set(Group{GID: 101, Name: "empty"})
	s.ObjStoreDeletes.Enqueue(ObjStoreDelete{Fid: 50, LastSize: 4 << 20, QueuedAt: 5})
	return s
}

func writeAll(t *testing.T, s *Set) string {
	t.Helper()
	var buf bytes.Buffer
	for _, c := range s.Ordered() {
		if err := c.WriteSection(&buf); err != nil {
			t.Fatalf("%s WriteSection: %v", c.Name(), err)
		}
	}
	return buf.String()
}

func replayAll(t *testing.T, text string) (*Set, error) {
	t.Helper()
	s := NewSet()
	r := NewLineReader(strings.NewReader(text))
	for _, c := range s.Ordered() {
		if err := c.ReplaySection(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func TestSet_Order(t *testing.T) {
	var names []string
	for _, c := range NewSet().Ordered() {
		names = append(names, c.Name())
	}
	want := []string{"mkstable", "chunkvers", "delegatecancel", "idempotent", "group", "objstoredelete"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("Ordered() = %v, want %v", names, want)
	}
}

func TestSet_Counts(t *testing.T) {
	want := map[string]int{
		"mkstable":       2,
		"chunkvers":      1,
		"delegatecancel": 1,
		"idempotent":     2,
		"group":          2,
		"objstoredelete": 1,
	}
	if got := populated().Counts(); !reflect.DeepEqual(got, want) {
		t.Errorf("Counts() = %v, want %v", got, want)
	}
	for name, n := range NewSet().Counts() {
		if n != 0 {
			t.Errorf("empty set %s = %d", name, n)
		}
	}
}

func TestSet_EmptySections(t *testing.T) {
	text := writeAll(t, NewSet())
	want := "mkstable/end\nchunkvers/end\ndelegatecancel/end\nidempotent/end\ngroup/end\nobjstoredelete/end\n"
	if text != want {
		t.Fatalf("empty sections = %q, want %q", text, want)
	}
	if _, err := replayAll(t, text); err != nil {
		t.Fatalf("replay: %v", err)
	}
}

func TestSet_RoundTrip(t *testing.T) {
	src := populated()
	text := writeAll(t, src)

	got, err := replayAll(t, text)
	if err != nil {
		t.Fatalf("replay: %v\n%s", err, text)
	}

	if !reflect.DeepEqual(got.MakeStable.Entries(), src.MakeStable.Entries()) {
		t.Errorf("mkstable = %+v, want %+v", got.MakeStable.Entries(), src.MakeStable.Entries())
	}
	if !reflect.DeepEqual(got.ChunkVersions.Entries(), src.ChunkVersions.Entries()) {
		t.Errorf("chunkvers = %+v", got.ChunkVersions.Entries())
	}
	if !reflect.DeepEqual(got.CanceledTokens.Tokens(), src.CanceledTokens.Tokens()) {
		t.Errorf("delegatecancel = %+v", got.CanceledTokens.Tokens())
	}
	if !reflect.DeepEqual(got.Idempotent.Requests(), src.Idempotent.Requests()) {
		t.Errorf("idempotent = %+v", got.Idempotent.Requests())
	}
	if !reflect.DeepEqual(got.Groups.Groups(), src.Groups.Groups()) {
		t.Errorf("group = %+v", got.Groups.Groups())
	}
	if !reflect.DeepEqual(got.ObjStoreDeletes.Pending(), src.ObjStoreDeletes.Pending()) {
		t.Errorf("objstoredelete = %+v", got.ObjStoreDeletes.Pending())
	}

	// Re-serializing the replayed state is byte identical.
	if again := writeAll(t, got); again != text {
		t.Fatalf("second write differs:\n%s\nvs\n%s", again, text)
	}
}

func TestSet_SwappedOrderIsMalformed(t *testing.T) {
	src := populated()
	ordered := src.Ordered()
	ordered[0], ordered[1] = ordered[1], ordered[0]

	var buf bytes.Buffer
	for _, c := range ordered {
		if err := c.WriteSection(&buf); err != nil {
			t.Fatalf("WriteSection: %v", err)
		}
	}
	if _, err := replayAll(t, buf.String()); !errors.Is(err, domain.ErrMalformed) {
		t.Fatalf("replay of swapped sections = %v, want ErrMalformed", err)
	}
}

func TestReplay_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"missing terminator", "mkstable/fid/1/chunkid/2/chunkVersion/1/size/0/checksum/0/hasChecksum/0\n"},
		{"foreign prefix", "chunkvers/fid/1/chunkid/2/from/1/to/2\nmkstable/end\n"},
		{"bad field", "mkstable/fid/1/chunkid/zz/chunkVersion/1/size/0/checksum/0/hasChecksum/0\nmkstable/end\n"},
		{"extra field", "mkstable/fid/1/chunkid/2/chunkVersion/1/size/0/checksum/0/hasChecksum/0/x\nmkstable/end\n"},
		{"empty bool", "mkstable/fid/1/chunkid/2/chunkVersion/1/size/0/checksum/0/hasChecksum/\nmkstable/end\n"},
		{"checksum overflow", "mkstable/fid/1/chunkid/2/chunkVersion/1/size/0/checksum/1deadbeef/hasChecksum/1\nmkstable/end\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMakeStable()
			err := m.ReplaySection(NewLineReader(strings.NewReader(tt.text)))
			if !errors.Is(err, domain.ErrMalformed) {
				t.Fatalf("ReplaySection = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestReplay_BadTokenAndMembers(t *testing.T) {
	c := NewCanceledTokens()
	err := c.ReplaySection(NewLineReader(strings.NewReader("delegatecancel/token/1.2.3\ndelegatecancel/end\n")))
	if !errors.Is(err, domain.ErrMalformed) {
		t.Fatalf("bad token = %v", err)
	}
	tr := NewIdempotentTracker()
	err = tr.ReplaySection(NewLineReader(strings.NewReader("idempotent/id/4d/seq/c/uid/1000003e8/op/mkdir/status/0/time/0\nidempotent/end\n")))
	if !errors.Is(err, domain.ErrMalformed) || tr.Len() != 0 {
		t.Fatalf("oversized uid = %v, %d requests", err, tr.Len())
	}
	g := NewUserGroups()
	err = g.ReplaySection(NewLineReader(strings.NewReader("group/gid/100000064/name/x/members/-\ngroup/end\n")))
	if !errors.Is(err, domain.ErrMalformed) || g.Len() != 0 {
		t.Fatalf("oversized gid = %v", err)
	}
	err = g.ReplaySection(NewLineReader(strings.NewReader("group/gid/1/name/x/members/1,zz\ngroup/end\n")))
	if !errors.Is(err, domain.ErrMalformed) {
		t.Fatalf("bad members = %v", err)
	}
}

func TestReplay_StopsAtTerminator(t *testing.T) {
	r := NewLineReader(strings.NewReader("mkstable/end\ntime/x\n"))
	if err := NewMakeStable().ReplaySection(r); err != nil {
		t.Fatalf("ReplaySection: %v", err)
	}
	line, err := r.Next()
	if err != nil || line != "time/x" {
		t.Fatalf("next line = %q, %v", line, err)
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	s := populated()
	snap := s.Snapshot()

	s.MakeStable.Done(7)
	s.ChunkVersions.Done(7)
	s.CanceledTokens.Expire(time.Unix(1<<40, 0))
	s.Idempotent.Forget(77)
	s.Groups.Delete(100)
	s.ObjStoreDeletes.Done(50)

	if snap.MakeStable.Len() != 2 || snap.ChunkVersions.Len() != 1 || snap.CanceledTokens.Len() != 1 ||
		snap.Idempotent.Len() != 2 || snap.Groups.Len() != 2 || snap.ObjStoreDeletes.Len() != 1 {
		t.Fatal("snapshot observed later mutations")
	}
	if s.MakeStable.Len() != 1 || s.Idempotent.Len() != 1 {
		t.Fatal("mutations not applied to source")
	}
}

func TestContributorBehaviour(t *testing.T) {
	s := populated()

	if !s.Groups.IsMember(1002, 100) || s.Groups.IsMember(1001, 100) || s.Groups.IsMember(1, 999) {
		t.Error("IsMember returned wrong result")
	}
	g, _ := s.Groups.Get(100)
	if !reflect.DeepEqual(g.Members, []uint32{1000, 1002}) {
		t.Errorf("members = %v, want sorted unique", g.Members)
	}

	if s.Idempotent.Record(IdempotentRequest{ID: 77, Status: 5}) {
		t.Error("Record accepted duplicate id")
	}
	if r, _ := s.Idempotent.Lookup(77); r.Status != 0 {
		t.Errorf("duplicate overwrote status: %d", r.Status)
	}
	if n := s.Idempotent.Expire(1700000000000001); n != 1 {
		t.Errorf("Expire removed %d, want 1", n)
	}

	tok := s.CanceledTokens.Tokens()[0]
	if !s.CanceledTokens.IsCanceled(tok) {
		t.Error("IsCanceled = false")
	}
	if n := s.CanceledTokens.Expire(time.Unix(1700000000, 0)); n != 0 {
		t.Errorf("Expire before expiry removed %d", n)
	}
	if n := s.CanceledTokens.Expire(time.Unix(1700003600, 0)); n != 1 {
		t.Errorf("Expire at expiry removed %d", n)
	}
}

func TestLineReader(t *testing.T) {
	r := NewLineReader(strings.NewReader("a\nb\nc"))
	if l, _ := r.Peek(); l != "a" {
		t.Fatalf("Peek = %q", l)
	}
	if l, _ := r.Peek(); l != "a" {
		t.Fatalf("second Peek = %q", l)
	}
	for _, want := range []string{"a", "b", "c"} {
		l, err := r.Next()
		if err != nil || l != want {
			t.Fatalf("Next = %q, %v, want %q", l, err, want)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Next at end = %v", err)
	}
	if _, err := r.Peek(); !errors.Is(err, io.EOF) {
		t.Fatalf("Peek at end = %v", err)
	}
	if r.LineNo() != 3 {
		t.Fatalf("LineNo = %d", r.LineNo())
	}
}
