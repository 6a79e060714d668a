package repl

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func newTestREPL(input string, exec Executor, opts ...Option) (*REPL, *bytes.Buffer) {
	out := &bytes.Buffer{}
	opts = append([]Option{WithIO(strings.NewReader(input), out)}, opts...)
	return New(exec, NewCompleter("checkpoint list", "checkpoint verify", "log dump", "admin status"), opts...), out
}

func TestREPL_Run_Exit(t *testing.T) {
	for _, input := range []string{"exit\n", "quit\n", ""} {
		calls := 0
		r, _ := newTestREPL(input, func([]string) error { calls++; return nil })
		if err := r.Run(); err != nil {
			t.Errorf("Run(%q) error = %v", input, err)
		}
		if calls != 0 {
			t.Errorf("Run(%q) executed %d commands", input, calls)
		}
	}
}

func TestREPL_Run_Executes(t *testing.T) {
	var got [][]string
	exec := func(args []string) error {
		got = append(got, args)
		if args[0] == "bad" {
			return errors.New("boom")
		}
		return nil
	}

	r, out := newTestREPL("\ncheckpoint verify --all\nbad\nlog dump 'log.0'", exec)
	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := [][]string{{"checkpoint", "verify", "--all"}, {"bad"}, {"log", "dump", "log.0"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("executed %q, want %q", got, want)
	}
	if !strings.Contains(out.String(), "error: boom") {
		t.Errorf("error not printed:\n%s", out.String())
	}
	if r.history.Len() != 3 {
		t.Errorf("history has %d entries, want 3", r.history.Len())
	}
}

func TestREPL_Builtins(t *testing.T) {
	r, out := newTestREPL("checkpoint ?\nhelp\nhistory\nexit\n", func([]string) error {
		t.Error("builtins must not reach the executor")
		return nil
	})
	if err := r.Run(); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	if !strings.Contains(s, "checkpoint list\ncheckpoint verify\n") {
		t.Errorf("completion missing:\n%s", s)
	}
	if !strings.Contains(s, "  admin status") || !strings.Contains(s, "  quit") {
		t.Errorf("help missing commands:\n%s", s)
	}
	if !strings.Contains(s, "   1  checkpoint ?") {
		t.Errorf("history listing missing:\n%s", s)
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"checkpoint list", []string{"checkpoint", "list"}, false},
		{"  log\tdump  ", []string{"log", "dump"}, false},
		{`log dump --dir "/var/lib/my logs"`, []string{"log", "dump", "--dir", "/var/lib/my logs"}, false},
		{`a 'b "c"' d\ e`, []string{"a", `b "c"`, "d e"}, false},
		{`x ""`, []string{"x", ""}, false},
		{`x "open`, nil, true},
		{`x \`, nil, true},
	}
	for _, tt := range tests {
		got, err := SplitArgs(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("SplitArgs(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitArgs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompleter(t *testing.T) {
	c := NewCompleter("log dump", "checkpoint list", "log dump")
	if got := c.Complete("log"); !reflect.DeepEqual(got, []string{"log dump"}) {
		t.Errorf("Complete(log) = %q", got)
	}
	if got := c.Complete("  checkpoint   l"); !reflect.DeepEqual(got, []string{"checkpoint list"}) {
		t.Errorf("Complete with extra spaces = %q", got)
	}
	if got := c.Complete("zzz"); got != nil {
		t.Errorf("Complete(zzz) = %q, want nil", got)
	}
	if got := len(c.Commands()); got != 6 {
		t.Errorf("Commands() has %d entries, want 6", got)
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory("")
	h.maxSize = 3
	for _, l := range []string{"a", "b", "b", "c", "d"} {
		h.Add(l)
	}
	if got := h.Entries(); !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Errorf("Entries() = %q", got)
	}
	if h.Get(0) != "d" || h.Get(2) != "b" || h.Get(3) != "" {
		t.Errorf("Get() = %q %q %q", h.Get(0), h.Get(2), h.Get(3))
	}
}

func TestHistory_Persist(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sub", "history")

	h := NewHistory(file)
	if err := h.Load(); err != nil {
		t.Fatalf("Load() on missing file: %v", err)
	}
	h.Add("checkpoint list")
	h.Add("log dump")
	if err := h.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if st, err := os.Stat(file); err != nil || st.Mode().Perm() != 0o600 {
		t.Fatalf("stat = %v, %v", st, err)
	}

	loaded := NewHistory(file)
	if err := loaded.Load(); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded.Entries(), h.Entries()) {
		t.Errorf("loaded %q, want %q", loaded.Entries(), h.Entries())
	}
}

func TestREPL_PersistsHistory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "history")
	r, _ := newTestREPL("admin status\n", func([]string) error { return nil }, WithHistory(NewHistory(file)), WithPrompt("> "))
	if err := r.Run(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(file)
	if err != nil || string(data) != "admin status\n" {
		t.Errorf("history file = %q, %v", data, err)
	}
}
