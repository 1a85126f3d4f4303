package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/rhythm-ls/internal/port/broadcast"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("expected non-nil hub")
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestNewHubOrigins(t *testing.T) {
	hub := NewHub("http://localhost:3000", "", "*.example.com")
	want := []string{"localhost:3000", "*.example.com"}
	if len(hub.origins) != len(want) {
		t.Fatalf("origins = %v, want %v", hub.origins, want)
	}
	for i := range want {
		if hub.origins[i] != want[i] {
			t.Errorf("origin %d = %q, want %q", i, hub.origins[i], want[i])
		}
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub()
	hub.Broadcast(context.Background(), Message{
		Type:    "test",
		Payload: []byte(`{"key":"value"}`),
	}, "")
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub()
	// A channel cannot be marshaled to JSON; this should log, not panic.
	hub.BroadcastEvent(context.Background(), "bad", make(chan int))
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.remove(&conn{cancel: cancel})
}

func TestConnWants(t *testing.T) {
	c := &conn{}
	if !c.wants("a.rhy") {
		t.Error("a new connection follows every path")
	}
	c.follow([]string{"a.rhy"})
	if !c.wants("a.rhy") || c.wants("b.rhy") {
		t.Error("subscription should narrow paths")
	}
	if !c.wants("") {
		t.Error("path-less events reach everyone")
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.CloseNow() })
	return c
}

func waitForConnections(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.ConnectionCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, got %d", n, hub.ConnectionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubDeliversDiagnostics(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv)
	waitForConnections(t, hub, 1)

	hub.BroadcastEvent(context.Background(), broadcast.EventDiagnostics, map[string]any{
		"path":        "a.rhy",
		"diagnostics": []any{},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != broadcast.EventDiagnostics {
		t.Errorf("type = %q", msg.Type)
	}
	if !strings.Contains(string(msg.Payload), `"a.rhy"`) {
		t.Errorf("payload = %s", msg.Payload)
	}
}

func TestHubSubscriptionFilters(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv)
	waitForConnections(t, hub, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub := `{"type":"subscribe","payload":{"paths":["b.rhy"]}}`
	if err := c.Write(ctx, websocket.MessageText, []byte(sub)); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Wait until the hub has applied the subscription.
	deadline := time.Now().Add(5 * time.Second)
	for {
		hub.mu.RLock()
		var narrowed bool
		for hc := range hub.conns {
			narrowed = !hc.wants("a.rhy")
		}
		hub.mu.RUnlock()
		if narrowed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscription not applied")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.BroadcastEvent(ctx, broadcast.EventDiagnostics, map[string]any{"path": "a.rhy"})
	hub.BroadcastEvent(ctx, broadcast.EventDiagnostics, map[string]any{"path": "b.rhy"})

	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"b.rhy"`) {
		t.Errorf("expected only b.rhy event first, got %s", data)
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	_ = dial(t, srv)
	waitForConnections(t, hub, 1)

	hub.Close()
	if hub.ConnectionCount() != 0 {
		t.Errorf("expected no connections after Close, got %d", hub.ConnectionCount())
	}
}
