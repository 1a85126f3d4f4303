// Package broadcast defines the port for pushing language service events to connected clients.
package broadcast

import "context"

// Event types pushed to clients.
const (
	EventDiagnostics = "diagnostics"
	EventEvicted     = "evicted"
	EventIndexed     = "indexed"
)

// Broadcaster sends events to all connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Nop drops every event.
type Nop struct{}

// BroadcastEvent implements Broadcaster.
func (Nop) BroadcastEvent(context.Context, string, any) {}
