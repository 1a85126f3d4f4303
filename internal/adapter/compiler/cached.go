package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	cfotel "github.com/Strob0t/rhythm-ls/internal/adapter/otel"
	"github.com/Strob0t/rhythm-ls/internal/port/cache"
	"github.com/Strob0t/rhythm-ls/internal/port/compiler"
)

const keyPrefix = "compile:"

var _ compiler.Compiler = (*Cached)(nil)

// Cached memoizes compiler results by content hash. Cache failures are
// logged and fall through to the wrapped compiler; compiler errors are never cached.
type Cached struct {
	inner   compiler.Compiler
	cache   cache.Cache
	ttl     time.Duration
	metrics *cfotel.Metrics
}

// NewCached wraps inner with c. metrics may be nil.
func NewCached(inner compiler.Compiler, c cache.Cache, ttl time.Duration, metrics *cfotel.Metrics) *Cached {
	return &Cached{inner: inner, cache: c, ttl: ttl, metrics: metrics}
}

// Key returns the cache key for content.
func Key(content string) string {
	sum := sha256.Sum256([]byte(content))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Compile implements compiler.Compiler.
func (c *Cached) Compile(ctx context.Context, content string) (*compiler.Result, error) {
	key := Key(content)

	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "compiler: cache get failed", "error", err)
	}
	if ok {
		var res compiler.Result
		if err := json.Unmarshal(data, &res); err == nil {
			if c.metrics != nil {
				c.metrics.CompileCacheHits.Add(ctx, 1)
			}
			return &res, nil
		}
		slog.WarnContext(ctx, "compiler: corrupt cache entry", "key", key)
	}
	if c.metrics != nil {
		c.metrics.CompileCacheMiss.Add(ctx, 1)
	}

	res, err := c.inner.Compile(ctx, content)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(res)
	if err != nil {
		return res, nil
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		slog.WarnContext(ctx, "compiler: cache set failed", "error", err)
	}
	return res, nil
}
