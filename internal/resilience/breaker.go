// Package resilience guards calls to the external template compiler.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker opens after a run of consecutive failures and rejects calls until
// the cool-down elapses. After that a single trial call decides whether it
// closes again. Caller cancellation is not counted as a failure.
type Breaker struct {
	mu          sync.Mutex
	state       state
	failures    int
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	trial       bool // a half-open trial call is in flight
	onChange    func(from, to string)
	now         func() time.Time // for testing
}

// NewBreaker creates a breaker that opens after maxFailures consecutive
// failures and stays open for timeout.
func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	return &Breaker{
		maxFailures: max(maxFailures, 1),
		timeout:     timeout,
		now:         time.Now,
	}
}

// OnStateChange registers fn to be called on every transition, outside the lock.
func (b *Breaker) OnStateChange(fn func(from, to string)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// State reports "closed", "open" or "half_open".
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allowRequest() {
		return ErrCircuitOpen
	}

	err := fn()
	b.record(err)
	return err
}

// Call runs fn through b and returns its value.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var out T
	err := b.Execute(func() error {
		v, err := fn()
		out = v
		return err
	})
	return out, err
}

func (b *Breaker) allowRequest() bool {
	b.mu.Lock()
	var from, to state
	allowed := false
	switch b.state {
	case stateClosed:
		allowed = true
	case stateOpen:
		if b.now().Sub(b.openedAt) >= b.timeout {
			from, to = b.state, stateHalfOpen
			b.state = stateHalfOpen
			b.trial = true
			allowed = true
		}
	case stateHalfOpen:
		if !b.trial {
			b.trial = true
			allowed = true
		}
	}
	notify := b.onChange
	b.mu.Unlock()

	if notify != nil && from != to {
		notify(from.String(), to.String())
	}
	return allowed
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	from := b.state
	b.trial = false
	switch {
	case err == nil:
		b.failures = 0
		b.state = stateClosed
	case errors.Is(err, context.Canceled):
		// The caller gave up; the compiler may be healthy.
	default:
		b.failures++
		if b.state == stateHalfOpen || b.failures >= b.maxFailures {
			b.state = stateOpen
			b.openedAt = b.now()
		}
	}
	to := b.state
	notify := b.onChange
	b.mu.Unlock()

	if notify != nil && from != to {
		notify(from.String(), to.String())
	}
}
