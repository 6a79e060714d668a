package connection

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"http://localhost:20050", "http://localhost:20050"},
		{"https://meta.example.com/", "https://meta.example.com"},
		{"127.0.0.1:20050", "http://127.0.0.1:20050"},
	}
	for _, tt := range tests {
		if got := NewHTTPClient(tt.server, 0).BaseURL(); got != tt.want {
			t.Errorf("BaseURL(%q) = %q, want %q", tt.server, got, tt.want)
		}
	}
}

func TestHTTPClient_GetAndPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "chunkmeta-cli/") {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		switch r.Method {
		case http.MethodGet:
			if r.Header.Get("Content-Type") != "" {
				t.Error("GET should not carry a content type")
			}
		case http.MethodPost:
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["reason"] != "manual" {
				t.Errorf("body = %v, err = %v", body, err)
			}
		}
		w.Write([]byte(`{"code":"OK","message":"Success","data":{"method":"` + r.Method + `","path":"` + r.URL.Path + `"}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)
	ctx := context.Background()

	var got struct {
		Method string `json:"method"`
		Path   string `json:"path"`
	}
	resp, err := client.Get(ctx, "/admin/v1/status")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if err := ParseResponse(resp, &got); err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if got.Method != http.MethodGet || got.Path != "/admin/v1/status" {
		t.Errorf("got %+v", got)
	}

	resp, err = client.Post(ctx, "/admin/v1/checkpoint", map[string]string{"reason": "manual"})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if err := ParseResponse(resp, &got); err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if got.Method != http.MethodPost {
		t.Errorf("got %+v", got)
	}
}

func TestHTTPClient_TLS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"OK","data":{"tls":true}}`))
	}))
	defer server.Close()

	roots := x509.NewCertPool()
	roots.AddCert(server.Certificate())
	addr := strings.TrimPrefix(server.URL, "https://")
	client := NewHTTPClient(addr, time.Second, WithTLS(&tls.Config{RootCAs: roots}))
	if client.BaseURL() != server.URL {
		t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), server.URL)
	}

	resp, err := client.Get(context.Background(), "/admin/v1/status")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	var got struct {
		TLS bool `json:"tls"`
	}
	if err := ParseResponse(resp, &got); err != nil || !got.TLS {
		t.Fatalf("ParseResponse() = %+v, %v", got, err)
	}

	if _, err := NewHTTPClient(server.URL, time.Second).Get(context.Background(), "/"); err == nil {
		t.Error("untrusted server certificate accepted")
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	if _, err := NewHTTPClient(addr, time.Second).Get(context.Background(), "/healthz"); err == nil {
		t.Fatal("expected an error from a closed server")
	}
}

func TestParseResponse_Error(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusConflict)
	rec.WriteString(`{"code":"CM-CP-4090","message":"no change since the last checkpoint","request_id":"01J0"}`)

	err := ParseResponse(rec.Result(), nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Code != "CM-CP-4090" || apiErr.RequestID != "01J0" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if !strings.Contains(err.Error(), "[CM-CP-4090]") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestParseResponse_ErrorWithoutEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusBadGateway)
	rec.WriteString("upstream down")

	err := ParseResponse(rec.Result(), nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "HTTP-502" || apiErr.Message != "Bad Gateway" {
		t.Fatalf("err = %v", err)
	}
}

func TestParseResponse_NilTargetAndBadBody(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteString(`{"code":"OK","data":{"x":1}}`)
	if err := ParseResponse(rec.Result(), nil); err != nil {
		t.Errorf("nil target: %v", err)
	}

	rec = httptest.NewRecorder()
	rec.WriteString("not json")
	var v map[string]any
	if err := ParseResponse(rec.Result(), &v); err == nil {
		t.Error("expected a parse error")
	}
}
