package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/rhythm-ls/internal/port/broadcast"
)

// ClientSubscribe is the message type clients send to narrow their paths.
const ClientSubscribe = "subscribe"

var _ broadcast.Broadcaster = (*Hub)(nil)

// BroadcastEvent marshals payload and sends it to the clients following the
// payload's "path" field, or to everyone when it has none.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	var target struct {
		Path string `json:"path"`
	}
	_ = json.Unmarshal(data, &target)

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	}, target.Path)
}
