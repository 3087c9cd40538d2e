package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func disableSSRF(t *testing.T) {
	t.Helper()
	orig := isPrivateHost
	isPrivateHost = func(string) bool { return false }
	t.Cleanup(func() { isPrivateHost = orig })
}

func execRequest(t *testing.T, args map[string]interface{}) requestResult {
	t.Helper()
	tool := NewRequestTool()
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var res requestResult
	if err := sonic.UnmarshalString(result.(string), &res); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return res
}

func TestRequestToolInfo(t *testing.T) {
	tool := NewRequestTool()
	if tool.Name() != "http_request" {
		t.Errorf("Name() = %s", tool.Name())
	}
	if info := tool.ToolInfo(); info.Name != "http_request" {
		t.Errorf("ToolInfo().Name = %s", info.Name)
	}
}

func TestRequestToolGet(t *testing.T) {
	disableSSRF(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("X-Test", "hello")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	res := execRequest(t, map[string]interface{}{"url": srv.URL, "method": "GET"})
	if res.Status != 200 {
		t.Errorf("status = %d", res.Status)
	}
	if res.Body != `{"ok":true}` {
		t.Errorf("body = %s", res.Body)
	}
	if res.Headers["X-Test"] != "hello" {
		t.Errorf("X-Test header = %s", res.Headers["X-Test"])
	}
}

func TestRequestToolPostDefaultsToJSON(t *testing.T) {
	disableSSRF(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s", ct)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	res := execRequest(t, map[string]interface{}{
		"url":    srv.URL,
		"method": "POST",
		"body":   `{"name":"test"}`,
	})
	if res.Status != 201 {
		t.Errorf("status = %d", res.Status)
	}
}

func TestRequestToolCustomHeaders(t *testing.T) {
	disableSSRF(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token123" {
			t.Errorf("Authorization = %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "text/plain" {
			t.Errorf("Content-Type = %s", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	execRequest(t, map[string]interface{}{
		"url":    srv.URL,
		"method": "POST",
		"body":   "hello",
		"headers": map[string]interface{}{
			"Authorization": "Bearer token123",
			"Content-Type":  "text/plain",
		},
	})
}

func TestRequestToolDelete(t *testing.T) {
	disableSSRF(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	res := execRequest(t, map[string]interface{}{"url": srv.URL, "method": "DELETE"})
	if res.Status != 204 {
		t.Errorf("status = %d", res.Status)
	}
}

func TestRequestToolTruncation(t *testing.T) {
	disableSSRF(t)
	bigBody := strings.Repeat("x", maxResponseChar+100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(bigBody))
	}))
	defer srv.Close()

	res := execRequest(t, map[string]interface{}{"url": srv.URL, "method": "GET"})
	if !res.Truncated {
		t.Error("expected truncated=true")
	}
	if res.Length != maxResponseChar {
		t.Errorf("length = %d, want %d", res.Length, maxResponseChar)
	}
}

func TestRequestToolRejections(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr string
	}{
		{"invalid url", map[string]interface{}{"url": "not-a-url", "method": "GET"}, ""},
		{"missing url", map[string]interface{}{"method": "GET"}, ""},
		{"private address", map[string]interface{}{"url": "http://localhost:8080/secret", "method": "GET"}, "private"},
		{"unsupported method", map[string]interface{}{"url": "https://example.com", "method": "TRACE"}, "unsupported method"},
		{"ftp scheme", map[string]interface{}{"url": "ftp://example.com/file", "method": "GET"}, "only http and https"},
	}

	tool := NewRequestTool()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tool.Execute(context.Background(), tt.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}
