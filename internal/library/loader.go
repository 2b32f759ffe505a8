// Package library packs prioritized project files into a bounded token
// budget and renders the result as model context.
package library

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"

	"github.com/mdresch/requirements-gathering-agent/internal/tokens"
)

// Discoverer enumerates and scores candidate files under a root.
type Discoverer interface {
	Discover(ctx context.Context, root string, include, exclude []string) ([]Candidate, error)
}

// DependencyExtractor returns the external modules a file imports.
type DependencyExtractor func(path, content string) []string

// CacheStats reports loader cache effectiveness.
type CacheStats struct {
	Hits    int
	Misses  int
	Entries int
}

// Loader builds Libraries and memoizes them by source and options.
// A Loader is safe for concurrent use.
type Loader struct {
	fs         afero.Fs
	est        tokens.Estimator
	logger     *slog.Logger
	discoverer Discoverer
	deps       DependencyExtractor

	mu     sync.RWMutex
	cache  map[uint64]cacheEntry
	hits   int
	misses int
}

type cacheEntry struct {
	source string
	lib    *Library
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDiscoverer sets the discoverer used by LoadProject.
func WithDiscoverer(d Discoverer) LoaderOption {
	return func(l *Loader) { l.discoverer = d }
}

// WithDependencyExtractor sets how per-file dependencies are extracted.
func WithDependencyExtractor(fn DependencyExtractor) LoaderOption {
	return func(l *Loader) { l.deps = fn }
}

// WithLogger sets the loader's logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader reading through fs and counting with est.
func NewLoader(fs afero.Fs, est tokens.Estimator, opts ...LoaderOption) *Loader {
	if est == nil {
		est = tokens.NewCharEstimator(0)
	}
	l := &Loader{
		fs:     fs,
		est:    est,
		logger: slog.Default(),
		cache:  make(map[uint64]cacheEntry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadProject discovers candidates under root and loads them. Cached
// results are returned without walking or reading the filesystem.
func (l *Loader) LoadProject(ctx context.Context, root string, opts Options) (*Library, error) {
	key, err := cacheKey(root, opts)
	if err != nil {
		return nil, err
	}
	if lib, ok := l.lookup(key); ok {
		return lib, nil
	}
	if l.discoverer == nil {
		return nil, fmt.Errorf("load project %s: no discoverer configured", root)
	}

	candidates, err := l.discoverer.Discover(ctx, root, opts.Include, opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}

	lib, err := l.build(ctx, root, candidates, opts)
	if err != nil {
		return nil, err
	}
	l.store(key, root, lib)
	return lib, nil
}

// Load selects the greedy priority-ordered prefix of candidates that fits
// under the ceiling. source identifies where the candidates came from and,
// together with opts, keys the cache.
func (l *Loader) Load(ctx context.Context, source string, candidates []Candidate, opts Options) (*Library, error) {
	key, err := cacheKey(source, opts)
	if err != nil {
		return nil, err
	}
	if lib, ok := l.lookup(key); ok {
		return lib, nil
	}

	lib, err := l.build(ctx, source, candidates, opts)
	if err != nil {
		return nil, err
	}
	l.store(key, source, lib)
	return lib, nil
}

// Invalidate drops every cached library loaded from source.
func (l *Loader) Invalidate(source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.cache {
		if e.source == source {
			delete(l.cache, k)
		}
	}
}

// Purge empties the cache.
func (l *Loader) Purge() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[uint64]cacheEntry)
}

// CacheStats returns hit/miss counters and the current entry count.
func (l *Loader) CacheStats() CacheStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return CacheStats{Hits: l.hits, Misses: l.misses, Entries: len(l.cache)}
}

func (l *Loader) lookup(key uint64) (*Library, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.cache[key]
	if ok {
		l.hits++
		return e.lib, true
	}
	l.misses++
	return nil, false
}

func (l *Loader) store(key uint64, source string, lib *Library) {
	l.mu.Lock()
	l.cache[key] = cacheEntry{source: source, lib: lib}
	l.mu.Unlock()
}

// cacheKey hashes the source together with the canonical JSON form of the
// options. encoding/json sorts map keys, so equal options hash equally.
func cacheKey(source string, opts Options) (uint64, error) {
	data, err := json.Marshal(opts)
	if err != nil {
		return 0, fmt.Errorf("encode load options: %w", err)
	}
	return xxh3.HashString(source + "\x00" + string(data)), nil
}

type scored struct {
	Candidate
	priority float64
}

func (l *Loader) build(ctx context.Context, source string, candidates []Candidate, opts Options) (*Library, error) {
	ceiling := opts.Ceiling()
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	lib := &Library{
		Source:       source,
		MaxTokens:    maxTokens,
		Ceiling:      ceiling,
		Categories:   make(map[Category][]ProjectFile),
		Dependencies: make(map[string][]string),
	}

	ordered := order(filterBySize(candidates, opts), opts)

	for _, c := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load %s: %w", source, err)
		}

		name := c.AbsPath
		if name == "" {
			name = c.Path
		}
		data, err := afero.ReadFile(l.fs, name)
		if err != nil {
			l.logger.Warn("skipping unreadable file", "path", c.Path, "error", err)
			lib.Skipped = append(lib.Skipped, SkippedFile{Path: c.Path, Reason: err.Error()})
			continue
		}

		content := string(data)
		n := l.est.Estimate(content)
		if lib.TotalTokens+n > ceiling {
			lib.Truncated = true
			l.logger.Debug("token ceiling reached",
				"path", c.Path, "tokens", n, "total", lib.TotalTokens, "ceiling", ceiling)
			break
		}

		file := ProjectFile{
			Path:         c.Path,
			Content:      content,
			Tokens:       n,
			Category:     c.Category,
			Priority:     c.priority,
			Size:         int64(len(data)),
			LastModified: c.LastModified,
		}
		if l.deps != nil {
			file.Dependencies = l.deps(c.Path, content)
		}

		lib.Files = append(lib.Files, file)
		lib.TotalTokens += n
		lib.Categories[file.Category] = append(lib.Categories[file.Category], file)
		if len(file.Dependencies) > 0 {
			lib.Dependencies[file.Path] = file.Dependencies
		}
	}

	lib.TotalFiles = len(lib.Files)
	l.logger.Info("project library loaded",
		"source", source,
		"files", lib.TotalFiles,
		"tokens", lib.TotalTokens,
		"ceiling", ceiling,
		"skipped", len(lib.Skipped),
		"truncated", lib.Truncated)
	return lib, nil
}

func filterBySize(candidates []Candidate, opts Options) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Size < opts.MinFileSize {
			continue
		}
		if opts.MaxFileSize > 0 && c.Size > opts.MaxFileSize {
			continue
		}
		out = append(out, c)
	}
	return out
}

// priorityTolerance absorbs float rounding in weight + boost sums, so that
// 0.7-0.6 counts as a full RecencyEpsilon apart.
const priorityTolerance = 1e-9

func nearTie(head, p float64) bool {
	return head-p < RecencyEpsilon-priorityTolerance
}

// order sorts candidates by descending priority with path as the final
// tie-break. With PrioritizeRecent, runs of candidates whose priority is
// within RecencyEpsilon of the run's first member are reordered newest
// first, so recency never lifts a file over a clearly higher priority.
func order(candidates []Candidate, opts Options) []scored {
	out := make([]scored, len(candidates))
	for i, c := range candidates {
		out[i] = scored{Candidate: c, priority: opts.Priority(c)}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority > out[j].priority
		}
		return out[i].Path < out[j].Path
	})

	if !opts.PrioritizeRecent {
		return out
	}

	for start := 0; start < len(out); {
		end := start + 1
		for end < len(out) && nearTie(out[start].priority, out[end].priority) {
			end++
		}
		run := out[start:end]
		sort.SliceStable(run, func(i, j int) bool {
			if !run[i].LastModified.Equal(run[j].LastModified) {
				return run[i].LastModified.After(run[j].LastModified)
			}
			return false
		})
		start = end
	}
	return out
}
