package compiler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/rhythm-ls/internal/port/cache"
	"github.com/Strob0t/rhythm-ls/internal/port/compiler"
)

type memCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

var _ cache.Cache = (*memCache)(nil)

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type countingCompiler struct {
	calls int
	err   error
}

var _ compiler.Compiler = (*countingCompiler)(nil)

func (c *countingCompiler) Compile(_ context.Context, content string) (*compiler.Result, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &compiler.Result{Warnings: []compiler.Message{{Message: content, Line: 1, Column: 1}}}, nil
}

func TestKey(t *testing.T) {
	if Key("a") == Key("b") {
		t.Error("distinct content must have distinct keys")
	}
	if Key("a") != Key("a") {
		t.Error("keys must be stable")
	}
	if !strings.HasPrefix(Key("a"), keyPrefix) {
		t.Errorf("key %q lacks prefix", Key("a"))
	}
}

func TestCachedHitAndMiss(t *testing.T) {
	inner := &countingCompiler{}
	c := NewCached(inner, newMemCache(), time.Minute, nil)
	ctx := context.Background()

	for range 3 {
		res, err := c.Compile(ctx, "same")
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		if len(res.Warnings) != 1 || res.Warnings[0].Message != "same" {
			t.Fatalf("result = %+v", res)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}

	if _, err := c.Compile(ctx, "other"); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

func TestCachedErrorsNotCached(t *testing.T) {
	inner := &countingCompiler{err: errors.New("down")}
	mc := newMemCache()
	c := NewCached(inner, mc, time.Minute, nil)

	for range 2 {
		if _, err := c.Compile(context.Background(), "x"); err == nil {
			t.Fatal("expected error")
		}
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
	if len(mc.data) != 0 {
		t.Errorf("cache holds %d entries after failures", len(mc.data))
	}
}

func TestCachedCacheFailuresFallThrough(t *testing.T) {
	inner := &countingCompiler{}
	mc := newMemCache()
	mc.getErr = errors.New("get down")
	mc.setErr = errors.New("set down")
	c := NewCached(inner, mc, time.Minute, nil)

	res, err := c.Compile(context.Background(), "x")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestCachedCorruptEntry(t *testing.T) {
	inner := &countingCompiler{}
	mc := newMemCache()
	mc.data[Key("x")] = []byte("{not json")
	c := NewCached(inner, mc, time.Minute, nil)

	if _, err := c.Compile(context.Background(), "x"); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}
