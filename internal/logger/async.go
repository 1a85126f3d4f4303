package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer flushes and stops a logger.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// AsyncHandler hands records to a small pool of writers through a bounded
// queue. Records are dropped rather than blocking the caller when the queue
// is full; the number of drops is reported on Close.
type AsyncHandler struct {
	inner  slog.Handler
	shared *asyncState
}

type queued struct {
	h   slog.Handler
	rec slog.Record
}

type asyncState struct {
	ch      chan queued
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Int64
	// sink receives the final drop report; it is the unwrapped handler.
	sink slog.Handler
}

// NewAsyncHandler creates an AsyncHandler with the given queue capacity and worker count.
func NewAsyncHandler(inner slog.Handler, chanSize, workers int) *AsyncHandler {
	st := &asyncState{
		ch:   make(chan queued, chanSize),
		sink: inner,
	}
	h := &AsyncHandler{inner: inner, shared: st}
	for range max(workers, 1) {
		st.wg.Add(1)
		go st.drain()
	}
	return h
}

func (st *asyncState) drain() {
	defer st.wg.Done()
	for q := range st.ch {
		_ = q.h.Handle(context.Background(), q.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record together with the handler that formats it,
// dropping it if the queue is full.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.shared.ch <- queued{h: h.inner, rec: rec.Clone()}:
	default:
		h.shared.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a handler sharing the same queue.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), shared: h.shared}
}

// WithGroup returns a handler sharing the same queue.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), shared: h.shared}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.shared.dropped.Load()
}

// Close stops accepting records and waits for the queue to drain. It is safe
// to call more than once.
func (h *AsyncHandler) Close() {
	st := h.shared
	st.once.Do(func() {
		close(st.ch)
		st.wg.Wait()
		if n := st.dropped.Load(); n > 0 {
			rec := slog.NewRecord(time.Now(), slog.LevelWarn, "logger: dropped records", 0)
			rec.AddAttrs(slog.Int64("count", n))
			_ = st.sink.Handle(context.Background(), rec)
		}
	})
}
