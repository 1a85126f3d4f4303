// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Close shuts down the queue connection immediately.
	Close() error
}

// Subject constants for NATS subjects used by rhythm-ls.
const (
	SubjectFileChanged = "rhythm.files.changed" // host -> service: a template was written or removed
	SubjectDiagnostics = "rhythm.diagnostics"   // service -> hosts: diagnostics for a file
)
