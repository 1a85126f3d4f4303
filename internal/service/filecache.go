package service

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/Strob0t/rhythm-ls/internal/domain/lsp"
	"github.com/Strob0t/rhythm-ls/internal/domain/rhythm"
)

// CacheEntry is the cached text of one template and the declarations found in it.
// Components holds component names followed by block names prefixed with
// rhythm.BlockPrefix, in source order, duplicates included.
type CacheEntry struct {
	Content    string
	Components []string
}

func (e CacheEntry) clone() CacheEntry {
	e.Components = slices.Clone(e.Components)
	return e
}

// aggregates is rebuilt from scratch after every write and replaced as a whole.
type aggregates struct {
	components     []string
	blocks         []string
	componentItems []lsp.CompletionItem
	blockItems     []lsp.CompletionItem
}

// FileCacheOption configures a FileCache.
type FileCacheOption func(*FileCache)

// WithLocking serializes writers behind a single RWMutex and lets readers run
// concurrently. Without it the cache takes no locks and must not be used
// from more than one goroutine at a time.
func WithLocking() FileCacheOption {
	return func(c *FileCache) {
		c.mu = &sync.RWMutex{}
	}
}

// FileCache maps template paths to their text and extracted declarations and
// keeps the workspace-wide component and block sets. Entries are never
// dropped automatically; stale paths stay until overwritten or evicted.
// Concurrent writes to the same path are last-writer-wins.
type FileCache struct {
	mu      *sync.RWMutex // nil when unguarded
	entries map[string]CacheEntry
	agg     aggregates
}

// NewFileCache creates an empty cache.
func NewFileCache(opts ...FileCacheOption) *FileCache {
	c := &FileCache{entries: make(map[string]CacheEntry)}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *FileCache) lock() {
	if c.mu != nil {
		c.mu.Lock()
	}
}

func (c *FileCache) unlock() {
	if c.mu != nil {
		c.mu.Unlock()
	}
}

func (c *FileCache) rlock() {
	if c.mu != nil {
		c.mu.RLock()
	}
}

func (c *FileCache) runlock() {
	if c.mu != nil {
		c.mu.RUnlock()
	}
}

// Store replaces the entry for path with content and its declarations, then
// rebuilds the aggregates. The returned entry is a copy.
func (c *FileCache) Store(path, content string) CacheEntry {
	entry := CacheEntry{
		Content:    content,
		Components: rhythm.ExtractDeclarations(content),
	}

	c.lock()
	c.entries[path] = entry
	c.agg = aggregate(c.entries)
	c.unlock()

	return entry.clone()
}

// Evict removes path and rebuilds the aggregates. Reports whether an entry existed.
func (c *FileCache) Evict(path string) bool {
	c.lock()
	defer c.unlock()

	if _, ok := c.entries[path]; !ok {
		return false
	}
	delete(c.entries, path)
	c.agg = aggregate(c.entries)
	return true
}

// Entry returns a copy of the entry for path.
func (c *FileCache) Entry(path string) (CacheEntry, bool) {
	c.rlock()
	defer c.runlock()

	e, ok := c.entries[path]
	if !ok {
		return CacheEntry{}, false
	}
	return e.clone(), true
}

// Paths returns the cached paths in sorted order.
func (c *FileCache) Paths() []string {
	c.rlock()
	defer c.runlock()

	paths := make([]string, 0, len(c.entries))
	for p := range c.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of cached paths.
func (c *FileCache) Len() int {
	c.rlock()
	defer c.runlock()
	return len(c.entries)
}

// Aggregates returns the sorted, de-duplicated component and block names
// across all cached files. Block names have their prefix stripped.
func (c *FileCache) Aggregates() (components, blocks []string) {
	c.rlock()
	defer c.runlock()
	return slices.Clone(c.agg.components), slices.Clone(c.agg.blocks)
}

// ComponentCompletions returns one completion item per known component.
func (c *FileCache) ComponentCompletions() []lsp.CompletionItem {
	c.rlock()
	defer c.runlock()
	return slices.Clone(c.agg.componentItems)
}

// BlockCompletions returns one completion item per known block.
func (c *FileCache) BlockCompletions() []lsp.CompletionItem {
	c.rlock()
	defer c.runlock()
	return slices.Clone(c.agg.blockItems)
}

// aggregate partitions every entry's declarations on the block prefix. The
// result depends only on the map contents, never on insertion order.
func aggregate(entries map[string]CacheEntry) aggregates {
	compSet := make(map[string]struct{})
	blockSet := make(map[string]struct{})
	for _, e := range entries {
		for _, decl := range e.Components {
			name, isBlock := rhythm.SplitDeclaration(decl)
			if isBlock {
				blockSet[name] = struct{}{}
			} else {
				compSet[name] = struct{}{}
			}
		}
	}

	var agg aggregates
	agg.components = sortedKeys(compSet)
	agg.blocks = sortedKeys(blockSet)

	agg.componentItems = make([]lsp.CompletionItem, 0, len(agg.components))
	for _, name := range agg.components {
		agg.componentItems = append(agg.componentItems, lsp.CompletionItem{
			Label:      name,
			Kind:       lsp.KindClass,
			Detail:     "Component",
			InsertText: fmt.Sprintf("@component(%q, { $1 })\n\t$0\n@endcomponent", name),
		})
	}
	agg.blockItems = make([]lsp.CompletionItem, 0, len(agg.blocks))
	for _, name := range agg.blocks {
		agg.blockItems = append(agg.blockItems, lsp.CompletionItem{
			Label:      name,
			Kind:       lsp.KindReference,
			Detail:     "Block",
			InsertText: fmt.Sprintf("@block(%q)\n\t$0\n@endblock", name),
		})
	}
	return agg
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
