// Package ws pushes language service events to browser and tool clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn wraps a single WebSocket connection and the paths it follows.
type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc

	mu    sync.Mutex
	paths map[string]bool // empty: every path
}

func (c *conn) wants(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return path == "" || len(c.paths) == 0 || c.paths[path]
}

func (c *conn) follow(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = make(map[string]bool, len(paths))
	for _, p := range paths {
		c.paths[p] = true
	}
}

// Hub manages all active WebSocket connections and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	conns   map[*conn]struct{}
	origins []string
}

// NewHub creates a hub accepting browser connections from the given origins.
// An origin of "*" disables the origin check; no origins means same-origin only.
func NewHub(origins ...string) *Hub {
	var patterns []string
	for _, o := range origins {
		if o == "" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			o = u.Host
		}
		patterns = append(patterns, o)
	}
	return &Hub{
		conns:   make(map[*conn]struct{}),
		origins: patterns,
	}
}

// HandleWS upgrades the request to a WebSocket connection. Clients may send
// {"type":"subscribe","payload":{"paths":[...]}} to receive only events for
// those files.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &conn{ws: ws, cancel: cancel}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	slog.Info("websocket connected", "remote", r.RemoteAddr)

	go func() {
		defer func() {
			h.remove(c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			_, data, err := ws.Read(ctx)
			if err != nil {
				return
			}
			h.handleClientMessage(c, data)
		}
	}()
}

type subscribeRequest struct {
	Paths []string `json:"paths"`
}

func (h *Hub) handleClientMessage(c *conn, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Debug("websocket: ignoring malformed client message", "error", err)
		return
	}
	if msg.Type != ClientSubscribe {
		return
	}
	var req subscribeRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Debug("websocket: bad subscribe payload", "error", err)
		return
	}
	c.follow(req.Paths)
}

// Broadcast sends msg to every client following path. An empty path reaches all clients.
func (h *Hub) Broadcast(ctx context.Context, msg Message, path string) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		if c.wants(path) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := c.ws.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.Debug("websocket write failed", "error", err)
			h.remove(c)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[*conn]struct{})
	h.mu.Unlock()

	for c := range conns {
		c.cancel()
		_ = c.ws.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected")
	}
}
