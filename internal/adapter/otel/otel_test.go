package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Strob0t/rhythm-ls/internal/config"
)

func TestInitWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), config.OTEL{ServiceName: "test"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	// Recording on the no-op provider must not panic.
	m.RecordOperation(context.Background(), "hover", time.Now(), false)
	m.RecordDiagnostics(context.Background(), "rhythm-structure", 2)
}

func TestNilMetricsNoop(t *testing.T) {
	var m *Metrics
	m.RecordOperation(context.Background(), "hover", time.Now(), true)
	m.RecordDiagnostics(context.Background(), "rhythm-compiler", 1)
}

func TestStartOperationSpan(t *testing.T) {
	ctx, span := StartOperationSpan(context.Background(), "update_cache", "a.rhy")
	defer span.End()
	if ctx == nil {
		t.Fatal("expected context")
	}
}

func TestHTTPMiddleware(t *testing.T) {
	h := HTTPMiddleware("rhythm-ls")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
}
