package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestWriteAuditLog(t *testing.T) {
	buf := captureLogs(t)

	WriteAuditLog(context.Background(), "CREATE_KEY", "tenant-001", 1, ResultSuccess)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry["operation"] != "CREATE_KEY" {
		t.Errorf("want operation CREATE_KEY, got %v", entry["operation"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("want level INFO, got %v", entry["level"])
	}
}

func TestWriteAuditLog_FailedIsWarn(t *testing.T) {
	buf := captureLogs(t)

	WriteAuditLog(context.Background(), "ROTATE_KEY", "tenant-001", 0, ResultFailed)

	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Errorf("want WARN entry, got %s", buf.String())
	}
}

func TestRequestLogger(t *testing.T) {
	buf := captureLogs(t)

	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !strings.Contains(buf.String(), `"status":418`) {
		t.Errorf("want status 418 in access log, got %s", buf.String())
	}
}

func TestHTTPMetrics_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/v1/tenants/{tenant_id}/keys", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, tenant := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tenants/"+tenant+"/keys", nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/v1/tenants/{tenant_id}/keys", "200"))
	if got != 3 {
		t.Errorf("want 3 requests, got %v", got)
	}
	if n := testutil.CollectAndCount(m.requests); n != 1 {
		t.Errorf("want 1 series, got %d", n)
	}
}

func TestNewHTTPMetrics_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewHTTPMetrics(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := NewHTTPMetrics(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.requests != second.requests {
		t.Error("want the registered counter to be reused")
	}
}
