package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Strob0t/rhythm-ls/internal/port/broadcast"
	"github.com/Strob0t/rhythm-ls/internal/port/messagequeue"
)

// FileEvents applies file-change notifications to the language service and
// pushes the resulting diagnostics to connected clients.
type FileEvents struct {
	lang  *LanguageService
	hub   broadcast.Broadcaster
	queue messagequeue.Queue // optional; diagnostics are also published here
}

// NewFileEvents creates a FileEvents. hub and queue may be nil.
func NewFileEvents(lang *LanguageService, hub broadcast.Broadcaster, queue messagequeue.Queue) *FileEvents {
	if hub == nil {
		hub = broadcast.Nop{}
	}
	return &FileEvents{lang: lang, hub: hub, queue: queue}
}

// Handle is a messagequeue.Handler for messagequeue.SubjectFileChanged.
func (f *FileEvents) Handle(ctx context.Context, subject string, data []byte) error {
	if err := messagequeue.Validate(subject, data); err != nil {
		return err
	}
	var p messagequeue.FileChangedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode %s: %w", subject, err)
	}
	_, err := f.Apply(ctx, p)
	return err
}

// Apply evicts deleted files, otherwise updates the cache and broadcasts the
// file's diagnostics. The diagnostics are returned for callers that reply
// synchronously; they are nil for deletions.
func (f *FileEvents) Apply(ctx context.Context, p messagequeue.FileChangedPayload) (*messagequeue.DiagnosticsPayload, error) {
	if p.Deleted {
		f.Evict(ctx, p.Path)
		return nil, nil
	}

	if err := f.lang.UpdateCache(ctx, p.Path, p.Content); err != nil {
		return nil, err
	}

	out := &messagequeue.DiagnosticsPayload{
		Path:        p.Path,
		Diagnostics: f.lang.GetDiagnostics(ctx, p.Path, nil),
	}
	f.hub.BroadcastEvent(ctx, broadcast.EventDiagnostics, out)
	f.publish(ctx, out)
	return out, nil
}

// Evict drops path from the cache and tells clients about it.
func (f *FileEvents) Evict(ctx context.Context, path string) bool {
	removed := f.lang.Evict(ctx, path)
	f.hub.BroadcastEvent(ctx, broadcast.EventEvicted, map[string]any{"path": path, "removed": removed})
	return removed
}

// Index runs a full workspace walk and announces the result to clients.
// Nothing is broadcast when the tree cannot be listed.
func (f *FileEvents) Index(ctx context.Context) (IndexResult, error) {
	res, err := f.lang.Initialize(ctx)
	if err != nil {
		return res, err
	}
	f.hub.BroadcastEvent(ctx, broadcast.EventIndexed, res)
	return res, nil
}

func (f *FileEvents) publish(ctx context.Context, p *messagequeue.DiagnosticsPayload) {
	if f.queue == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		slog.ErrorContext(ctx, "events: marshal diagnostics", "path", p.Path, "error", err)
		return
	}
	if err := f.queue.Publish(ctx, messagequeue.SubjectDiagnostics, data); err != nil {
		slog.WarnContext(ctx, "events: publish diagnostics failed", "path", p.Path, "error", err)
	}
}
