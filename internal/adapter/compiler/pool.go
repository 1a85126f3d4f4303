package compiler

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many compiler processes run at once.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool allows at most limit concurrent compilations. Limits below 1 are raised to 1.
func NewPool(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit))}
}

// Run waits for a slot, then runs fn. A nil pool runs fn directly.
// Returns ctx.Err() if ctx ends while waiting.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	if p == nil || p.sem == nil {
		return fn()
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
