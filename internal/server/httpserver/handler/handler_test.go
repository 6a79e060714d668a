package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
	"github.com/yndnr/chunkmeta-go/internal/storage/checkpoint"
	"github.com/yndnr/chunkmeta-go/internal/storage/oplog"
	"github.com/yndnr/chunkmeta-go/internal/telemetry/logger"
	"github.com/yndnr/chunkmeta-go/internal/telemetry/metric"
)

type fakeEngine struct {
	ready      error
	state      oplog.State
	latest     *checkpoint.Info
	latestErr  error
	trigger    *checkpoint.Info
	triggerErr error
	triggered  int
}

func (f *fakeEngine) Ready() error       { return f.ready }
func (f *fakeEngine) State() oplog.State { return f.state }
func (f *fakeEngine) Stats() metric.Stats {
	return metric.Stats{Leaves: 3, Sections: map[string]int{"group": 1}}
}
func (f *fakeEngine) LatestCheckpoint() (*checkpoint.Info, error) { return f.latest, f.latestErr }
func (f *fakeEngine) TriggerCheckpoint(context.Context) (*checkpoint.Info, error) {
	f.triggered++
	return f.trigger, f.triggerErr
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(logger.WithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHandleReady(t *testing.T) {
	f := &fakeEngine{ready: domain.ErrLogClosed.WithDetails("engine not recovered")}
	h := New(f, nil)

	rec := serve(h, http.MethodGet, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decode(t, rec); resp.Code != "CM-LOG-5030" || resp.RequestID != "req-1" {
		t.Fatalf("response = %+v", resp)
	}

	f.ready = nil
	if rec := serve(h, http.MethodGet, "/readyz"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleGetCheckpoint(t *testing.T) {
	f := &fakeEngine{
		state:     oplog.State{LogName: "log.3", Seq: 40},
		latestErr: domain.ErrNoCheckpoint,
	}
	h := New(f, nil)

	rec := serve(h, http.MethodGet, "/admin/v1/checkpoint")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Data CheckpointStatus `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Data.Latest != nil || body.Data.Pending != 40 || body.Data.Log.LogName != "log.3" {
		t.Fatalf("without checkpoint = %+v", body.Data)
	}

	f.latestErr = nil
	f.latest = &checkpoint.Info{Seq: 35, Path: "/cp/chkpt.35"}
	rec = serve(h, http.MethodGet, "/admin/v1/checkpoint")
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Data.Latest == nil || body.Data.Pending != 5 {
		t.Fatalf("with checkpoint = %+v", body.Data)
	}

	f.latestErr = errors.New("disk gone")
	if rec := serve(h, http.MethodGet, "/admin/v1/checkpoint"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status on error = %d", rec.Code)
	}
}

func TestHandleTriggerCheckpoint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"written", nil, http.StatusCreated},
		{"nothing new", domain.ErrSequenceReused, http.StatusConflict},
		{"in progress", domain.ErrCheckpointInProgress, http.StatusConflict},
		{"throttled", domain.ErrCheckpointThrottled, http.StatusTooManyRequests},
		{"log failed", domain.ErrLogClosed, http.StatusServiceUnavailable},
		{"io", domain.ErrCheckpointIO.WithDetails("rename"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeEngine{triggerErr: tt.err}
			if tt.err == nil {
				f.trigger = &checkpoint.Info{Seq: 7, Path: "/cp/chkpt.7"}
			}
			rec := serve(New(f, nil), http.MethodPost, "/admin/v1/checkpoint")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if f.triggered != 1 {
				t.Fatalf("triggered = %d", f.triggered)
			}
		})
	}
}

func TestHandleStatus(t *testing.T) {
	f := &fakeEngine{ready: domain.ErrLogClosed}
	rec := serve(New(f, nil), http.MethodGet, "/admin/v1/status")
	var body struct {
		Data StatusResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Ready || body.Data.Error == "" || body.Data.Leaves != 3 || body.Data.Build.Version == "" {
		t.Fatalf("status = %+v", body.Data)
	}
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := map[string]int{
		"CM-ARG-4000": http.StatusBadRequest,
		"CM-ARG-4040": http.StatusNotFound,
		"CM-ARG-4090": http.StatusConflict,
		"CM-CP-4290":  http.StatusTooManyRequests,
		"CM-LOG-5030": http.StatusServiceUnavailable,
		"CM-CP-4220":  http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := errorCodeToHTTPStatus(code); got != want {
			t.Errorf("%s -> %d, want %d", code, got, want)
		}
	}
}
