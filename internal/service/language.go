package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	cfotel "github.com/Strob0t/rhythm-ls/internal/adapter/otel"
	"github.com/Strob0t/rhythm-ls/internal/domain"
	"github.com/Strob0t/rhythm-ls/internal/domain/lsp"
	"github.com/Strob0t/rhythm-ls/internal/domain/rhythm"
	"github.com/Strob0t/rhythm-ls/internal/port/compiler"
	"github.com/Strob0t/rhythm-ls/internal/port/filesystem"
)

// compilerSpan is the width given to compiler diagnostics, which only carry a start position.
const compilerSpan = 10

// LanguageService answers completion, diagnostics and hover queries for
// Rhythm templates from the file cache. Public methods never panic and
// degrade to empty results when a collaborator fails.
type LanguageService struct {
	cache    *FileCache
	files    filesystem.FileService
	compiler compiler.Compiler
	ext      string
	metrics  *cfotel.Metrics

	loads singleflight.Group
}

// Option configures a LanguageService.
type Option func(*LanguageService)

// WithExtension sets the file extension Initialize indexes.
func WithExtension(ext string) Option {
	return func(s *LanguageService) { s.ext = ext }
}

// WithMetrics records per-operation metrics.
func WithMetrics(m *cfotel.Metrics) Option {
	return func(s *LanguageService) { s.metrics = m }
}

// NewLanguageService creates a language service over cache. A nil compiler
// disables compiler diagnostics.
func NewLanguageService(cache *FileCache, files filesystem.FileService, comp compiler.Compiler, opts ...Option) *LanguageService {
	if comp == nil {
		comp = compiler.Nop{}
	}
	s := &LanguageService{
		cache:    cache,
		files:    files,
		compiler: comp,
		ext:      lsp.DefaultExtension,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Cache returns the underlying file cache.
func (s *LanguageService) Cache() *FileCache {
	return s.cache
}

// recoverTo logs a recovered panic for op and runs onPanic to set the safe result.
// It must be deferred directly.
func recoverTo(op string, onPanic func(r any)) {
	if r := recover(); r != nil {
		slog.Error("language: recovered panic", "operation", op, "panic", r)
		onPanic(r)
	}
}

// UpdateCache stores content for path, or the file service's current text
// when content is nil, and rebuilds the aggregates. When the file cannot be
// read the error is logged and returned and the existing entry is kept.
func (s *LanguageService) UpdateCache(ctx context.Context, path string, content *string) (err error) {
	start := time.Now()
	ctx, span := cfotel.StartOperationSpan(ctx, "update_cache", path)
	defer span.End()
	defer func() { s.metrics.RecordOperation(ctx, "update_cache", start, err != nil) }()
	defer recoverTo("update_cache", func(r any) { err = fmt.Errorf("update cache %s: panic: %v", path, r) })

	var text string
	if content != nil {
		text = *content
	} else {
		if s.files == nil {
			return fmt.Errorf("update cache %s: %w", path, domain.ErrNotFound)
		}
		text, err = s.files.FileContent(ctx, path)
		if err != nil {
			slog.WarnContext(ctx, "language: file read failed", "path", path, "error", err)
			span.RecordError(err)
			return fmt.Errorf("update cache %s: %w", path, err)
		}
	}

	entry := s.cache.Store(path, text)
	if s.metrics != nil {
		s.metrics.CacheUpdates.Add(ctx, 1)
	}
	slog.DebugContext(ctx, "language: cache updated", "path", path, "declarations", len(entry.Components))
	return nil
}

// Evict drops path from the cache and rebuilds the aggregates.
// Nothing in the service calls it on its own.
func (s *LanguageService) Evict(ctx context.Context, path string) (removed bool) {
	defer recoverTo("evict", func(any) { removed = false })

	removed = s.cache.Evict(path)
	if removed {
		if s.metrics != nil {
			s.metrics.CacheEvictions.Add(ctx, 1)
		}
		slog.DebugContext(ctx, "language: cache entry evicted", "path", path)
	}
	return removed
}

// entry returns the cached entry for path, loading it through the file
// service first when it is missing. Concurrent loads of one path share a
// single read.
func (s *LanguageService) entry(ctx context.Context, path string) (CacheEntry, error) {
	if e, ok := s.cache.Entry(path); ok {
		return e, nil
	}

	_, err, _ := s.loads.Do(path, func() (any, error) {
		if _, ok := s.cache.Entry(path); ok {
			return nil, nil
		}
		return nil, s.UpdateCache(ctx, path, nil)
	})
	if err != nil {
		return CacheEntry{}, err
	}

	e, ok := s.cache.Entry(path)
	if !ok {
		// Evicted between the load and this read.
		return CacheEntry{}, fmt.Errorf("load %s: %w", path, domain.ErrNotFound)
	}
	return e, nil
}

// GetCompletions returns the candidates for the cursor at line/character of
// path. The text left of the cursor picks one of four candidate sets; see
// rhythm.ClassifyCompletionContext. The result is never nil.
func (s *LanguageService) GetCompletions(ctx context.Context, path string, line, character int) (items []lsp.CompletionItem) {
	start := time.Now()
	ctx, span := cfotel.StartPositionSpan(ctx, "completion", path, line, character)
	defer span.End()
	failed := false
	defer func() { s.metrics.RecordOperation(ctx, "completion", start, failed) }()
	defer recoverTo("completion", func(any) { items, failed = []lsp.CompletionItem{}, true })

	e, err := s.entry(ctx, path)
	if err != nil {
		slog.WarnContext(ctx, "language: completion unavailable", "path", path, "error", err)
		failed = true
		return []lsp.CompletionItem{}
	}

	text, _ := rhythm.LineAt(e.Content, line)
	prefix := rhythm.PrefixAt(text, character)

	cc := rhythm.ClassifyCompletionContext(prefix)
	switch cc {
	case rhythm.ContextDirective:
		items = rhythm.Directives()
	case rhythm.ContextComponentProperty:
		items = rhythm.ComponentProperties()
	case rhythm.ContextVariable:
		items = rhythm.ContextVariables()
	default:
		items = rhythm.Directives()
		items = append(items, s.cache.ComponentCompletions()...)
		items = append(items, s.cache.BlockCompletions()...)
		items = append(items, rhythm.ContextVariables()...)
	}

	slog.DebugContext(ctx, "language: completion", "path", path, "context", cc.String(), "items", len(items))
	return items
}

// GetDiagnostics reports compiler diagnostics followed by structural balance
// diagnostics for path. content overrides the cached text without updating
// the cache. A compiler failure only drops the compiler part. The result is
// never nil.
func (s *LanguageService) GetDiagnostics(ctx context.Context, path string, content *string) (diags []lsp.Diagnostic) {
	start := time.Now()
	ctx, span := cfotel.StartOperationSpan(ctx, "diagnostics", path)
	defer span.End()
	failed := false
	defer func() { s.metrics.RecordOperation(ctx, "diagnostics", start, failed) }()
	defer recoverTo("diagnostics", func(any) { diags, failed = []lsp.Diagnostic{}, true })

	var text string
	if content != nil {
		text = *content
	} else {
		e, err := s.entry(ctx, path)
		if err != nil {
			slog.WarnContext(ctx, "language: diagnostics unavailable", "path", path, "error", err)
			failed = true
			return []lsp.Diagnostic{}
		}
		text = e.Content
	}

	diags = []lsp.Diagnostic{}
	compiled, err := s.compile(ctx, text)
	if err != nil {
		slog.WarnContext(ctx, "language: compiler failed", "path", path, "error", err)
		span.RecordError(err)
	} else {
		diags = append(diags, compiled...)
	}
	s.metrics.RecordDiagnostics(ctx, lsp.SourceCompiler, len(diags))

	structural := rhythm.CheckBalance(text)
	s.metrics.RecordDiagnostics(ctx, lsp.SourceStructure, len(structural))
	diags = append(diags, structural...)

	slog.DebugContext(ctx, "language: diagnostics", "path", path, "count", len(diags))
	return diags
}

// compile runs the compiler in isolation so that a panic inside it cannot
// take the structural pass down with it.
func (s *LanguageService) compile(ctx context.Context, text string) (diags []lsp.Diagnostic, err error) {
	defer recoverTo("compile", func(r any) { diags, err = nil, fmt.Errorf("%w: panic: %v", domain.ErrCompilerUnavailable, r) })

	res, err := s.compiler.Compile(ctx, text)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("compiler returned no result")
	}

	diags = make([]lsp.Diagnostic, 0, len(res.Errors)+len(res.Warnings))
	for _, m := range res.Errors {
		diags = append(diags, compilerDiagnostic(m, lsp.SeverityError))
	}
	for _, m := range res.Warnings {
		diags = append(diags, compilerDiagnostic(m, lsp.SeverityWarning))
	}
	return diags, nil
}

// compilerDiagnostic converts a 1-based compiler position to a 0-based range
// of compilerSpan characters.
func compilerDiagnostic(m compiler.Message, sev lsp.Severity) lsp.Diagnostic {
	line := max(m.Line-1, 0)
	col := max(m.Column-1, 0)
	return lsp.Diagnostic{
		Range:    lsp.LineRange(line, col, col+compilerSpan),
		Severity: sev,
		Source:   lsp.SourceCompiler,
		Message:  m.Message,
	}
}

// GetHoverInfo describes the token under the cursor, or returns nil.
func (s *LanguageService) GetHoverInfo(ctx context.Context, path string, line, character int) (info *lsp.HoverInfo) {
	start := time.Now()
	ctx, span := cfotel.StartPositionSpan(ctx, "hover", path, line, character)
	defer span.End()
	failed := false
	defer func() { s.metrics.RecordOperation(ctx, "hover", start, failed) }()
	defer recoverTo("hover", func(any) { info, failed = nil, true })

	e, err := s.entry(ctx, path)
	if err != nil {
		slog.WarnContext(ctx, "language: hover unavailable", "path", path, "error", err)
		failed = true
		return nil
	}

	text, ok := rhythm.LineAt(e.Content, line)
	if !ok {
		return nil
	}
	return rhythm.ResolveHover(text, line, character)
}

// IndexResult summarizes an Initialize walk.
type IndexResult struct {
	Loaded     int `json:"loaded"`
	Failed     int `json:"failed"`
	Components int `json:"components"`
	Blocks     int `json:"blocks"`
}

// Initialize walks the workspace tree once and caches every file with the
// configured extension. Per-file failures are logged and skipped; only a
// failure to list the tree is returned.
func (s *LanguageService) Initialize(ctx context.Context) (res IndexResult, err error) {
	start := time.Now()
	ctx, span := cfotel.StartOperationSpan(ctx, "initialize", "")
	defer span.End()
	defer func() { s.metrics.RecordOperation(ctx, "initialize", start, err != nil) }()
	defer recoverTo("initialize", func(r any) { err = fmt.Errorf("initialize: panic: %v", r) })

	if s.files == nil {
		return res, fmt.Errorf("initialize: %w", domain.ErrNotFound)
	}
	tree, err := s.files.FileTree(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "language: file tree unavailable", "error", err)
		return res, fmt.Errorf("initialize: %w", err)
	}

	filesystem.Walk(tree, func(n filesystem.Node) {
		if n.Type != filesystem.NodeFile || !lsp.HasExtension(n.Path, s.ext) {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if err := s.UpdateCache(ctx, n.Path, nil); err != nil {
			res.Failed++
			return
		}
		res.Loaded++
	})

	components, blocks := s.cache.Aggregates()
	res.Components, res.Blocks = len(components), len(blocks)
	slog.InfoContext(ctx, "language: workspace indexed",
		"files", res.Loaded, "failed", res.Failed,
		"components", res.Components, "blocks", res.Blocks,
		"duration_ms", time.Since(start).Milliseconds())
	return res, ctx.Err()
}
