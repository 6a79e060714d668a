package metric

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.Checkpoints.WithLabelValues(ResultOK).Inc()
	r.CheckpointSeq.Set(42)
	r.LogEntries.WithLabelValues("mkdir").Add(3)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`chunkmeta_checkpoint_total{result="ok"} 1`,
		`chunkmeta_checkpoint_log_seq 42`,
		`chunkmeta_log_entries_total{op="mkdir"} 3`,
		`go_goroutines`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestCollector(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NewCollector(func() Stats {
		return Stats{
			Leaves:      7,
			Sections:    map[string]int{"mkstable": 2},
			LogBytes:    1024,
			LogSegments: 3,
		}
	}))

	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetGauge() != nil {
				got[mf.GetName()] += m.GetGauge().GetValue()
			}
		}
	}
	tests := map[string]float64{
		"chunkmeta_tree_leaves":     7,
		"chunkmeta_section_entries": 2,
		"chunkmeta_log_bytes":       1024,
		"chunkmeta_log_segments":    3,
	}
	for name, want := range tests {
		if got[name] != want {
			t.Errorf("%s = %v, want %v", name, got[name], want)
		}
	}
}
