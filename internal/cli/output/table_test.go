package output

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"
)

func render(t *testing.T, f *TableFormatter, data any) string {
	t.Helper()
	var buf bytes.Buffer
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	return buf.String()
}

func TestTableFormatter_Table(t *testing.T) {
	table := &Table{}
	table.SetHeaders("SECTION", "ENTRIES")
	table.AddRow("mkstable", "3")
	table.AddRow("idempotent", "12")

	out := render(t, &TableFormatter{}, table)
	want := "SECTION     ENTRIES\nmkstable    3\nidempotent  12\n"
	if out != want {
		t.Errorf("got:\n%q\nwant:\n%q", out, want)
	}

	out = render(t, &TableFormatter{NoHeaders: true}, *table)
	if strings.Contains(out, "SECTION") {
		t.Errorf("NoHeaders output has headers:\n%s", out)
	}
}

func TestTableFormatter_Nil(t *testing.T) {
	if out := render(t, &TableFormatter{}, nil); out != "" {
		t.Errorf("Format(nil) = %q, want empty", out)
	}
}

func TestTableFormatter_Slice(t *testing.T) {
	mod := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	infos := []*sampleInfo{
		{Seq: 1, Path: "chkpt.1", Size: 512, ModTime: mod},
		{Seq: 2, Path: "chkpt.2", Size: 3072, ModTime: mod, Latest: true},
	}

	out := render(t, &TableFormatter{}, infos)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if fields := strings.Fields(lines[0]); !reflect.DeepEqual(fields, []string{"SEQ", "PATH", "SIZE", "LATEST"}) {
		t.Errorf("headers = %v", fields)
	}
	if !strings.Contains(lines[2], "3.0 KiB") || !strings.HasSuffix(lines[2], "true") {
		t.Errorf("row = %q", lines[2])
	}

	wide := render(t, &TableFormatter{Wide: true}, infos)
	if !strings.Contains(wide, "MOD_TIME") || !strings.Contains(wide, "2026-03-04 05:06:07") {
		t.Errorf("wide output missing mod time:\n%s", wide)
	}
}

func TestTableFormatter_EmptySlice(t *testing.T) {
	if out := render(t, &TableFormatter{}, []sampleInfo{}); out != "" {
		t.Errorf("empty slice rendered %q", out)
	}
}

func TestTableFormatter_Struct(t *testing.T) {
	out := render(t, &TableFormatter{}, sampleInfo{Seq: 9, Path: "chkpt.9", Size: 100})
	for _, want := range []string{"FIELD", "seq", "9", "path", "chkpt.9", "100 B"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "mod_time") {
		t.Errorf("wide field shown without wide mode:\n%s", out)
	}
}

func TestTableFormatter_Map(t *testing.T) {
	out := render(t, &TableFormatter{}, map[string]int{"group": 4})
	if !strings.Contains(out, "KEY") || !strings.Contains(out, "group") || !strings.Contains(out, "4") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestTableFormatter_SkipAndUnexportedFields(t *testing.T) {
	type row struct {
		Name   string `json:"name"`
		Secret string `json:"secret" table:"-"`
		hidden string
	}
	out := render(t, &TableFormatter{}, []row{{Name: "a", Secret: "s", hidden: "h"}})
	if strings.Contains(out, "SECRET") || strings.Contains(out, "HIDDEN") {
		t.Errorf("hidden columns rendered:\n%s", out)
	}
}

func TestTableFormatter_FallbackToJSON(t *testing.T) {
	out := render(t, &TableFormatter{}, 42)
	if strings.TrimSpace(out) != "42" {
		t.Errorf("fallback = %q", out)
	}
}

func TestFormatValue(t *testing.T) {
	var nilPtr *int
	n := 5
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"empty string", "", "-"},
		{"int", int64(-17), "-17"},
		{"uint", uint16(3), "3"},
		{"float", 1.5, "1.50"},
		{"bool", true, "true"},
		{"pointer", &n, "5"},
		{"nil pointer", nilPtr, ""},
		{"slice", []int{1, 2}, "[2 items]"},
		{"empty map", map[string]int{}, "-"},
		{"duration", 90 * time.Second, "1m30s"},
		{"zero time", time.Time{}, "-"},
		{"struct", struct {
			A int `json:"a"`
		}{1}, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(reflect.ValueOf(tt.v)); got != tt.want {
				t.Errorf("formatValue(%v) = %q, want %q", tt.v, got, tt.want)
			}
		})
	}
	if got := formatValue(reflect.Value{}); got != "" {
		t.Errorf("invalid value = %q", got)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"seq":         "seq",
		"LogName":     "Log_Name",
		"ErrChecksum": "Err_Checksum",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
