// Package discovery walks a project tree and turns its files into scored
// library candidates.
package discovery

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/mdresch/requirements-gathering-agent/internal/library"
)

// DefaultExcludeDirs are directories never descended into
var DefaultExcludeDirs = map[string]bool{
	".git":             true,
	".rga":             true,
	"node_modules":     true,
	"vendor":           true,
	"__pycache__":      true,
	".venv":            true,
	"venv":             true,
	".idea":            true,
	".vscode":          true,
	"dist":             true,
	"build":            true,
	"target":           true, // Rust
	".next":            true, // Next.js
	"coverage":         true,
	".cache":           true,
	".pytest_cache":    true,
	".mypy_cache":      true,
	".tox":             true,
	"bower_components": true,
	".terraform":       true,
	".serverless":      true,
}

// DefaultExcludePatterns are file patterns to skip
var DefaultExcludePatterns = []string{
	"*.lock",
	"*.sum",
	".DS_Store",
	"*.log",
	"*.min.js",
	"*.min.css",
	"*.map",
	"*.pyc",
	"*.class",
	"*.o",
	"*.exe",
	"*.dll",
	"*.so",
	"*.dylib",
	"*.a",
	"*.bin",
	"*.png",
	"*.jpg",
	"*.jpeg",
	"*.gif",
	"*.ico",
	"*.pdf",
	"*.zip",
	"*.gz",
}

// Options configures the walk.
type Options struct {
	MaxDepth        int // 0 = unlimited
	ExcludeDirs     map[string]bool
	ExcludePatterns []string
	IncludeHidden   bool
}

// DefaultOptions returns the walk defaults.
func DefaultOptions() Options {
	return Options{
		ExcludeDirs:     DefaultExcludeDirs,
		ExcludePatterns: DefaultExcludePatterns,
	}
}

// Explorer discovers candidate files on an afero filesystem.
type Explorer struct {
	fs   afero.Fs
	opts Options
}

// NewExplorer creates an Explorer over fs.
func NewExplorer(fs afero.Fs, opts Options) *Explorer {
	if opts.ExcludeDirs == nil {
		opts.ExcludeDirs = DefaultExcludeDirs
	}
	if opts.ExcludePatterns == nil {
		opts.ExcludePatterns = DefaultExcludePatterns
	}
	return &Explorer{fs: fs, opts: opts}
}

// Discover walks root and returns every candidate that passes the
// exclusion rules and, when include is non-empty, matches at least one
// include pattern. Patterns are matched against the slash-separated
// relative path and the base name; "**/" and "/**" match any depth.
// Results are sorted by path.
func (e *Explorer) Discover(ctx context.Context, root string, include, exclude []string) ([]library.Candidate, error) {
	info, err := e.fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var out []library.Candidate
	err = afero.Walk(e.fs, root, func(p string, fi os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			// Unreadable subtrees are skipped, not fatal.
			if fi != nil && fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		name := fi.Name()

		if fi.IsDir() {
			if !e.opts.IncludeHidden && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if e.opts.ExcludeDirs[name] || matchesAny(rel, exclude) {
				return filepath.SkipDir
			}
			if e.opts.MaxDepth > 0 && strings.Count(rel, "/")+1 >= e.opts.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if !fi.Mode().IsRegular() {
			return nil
		}
		if !e.opts.IncludeHidden && strings.HasPrefix(name, ".") {
			return nil
		}
		if matchesExcludePattern(name, e.opts.ExcludePatterns) || matchesAny(rel, exclude) {
			return nil
		}
		if len(include) > 0 && !matchesAny(rel, include) {
			return nil
		}

		out = append(out, library.Candidate{
			Path:         rel,
			AbsPath:      p,
			Category:     Categorize(rel),
			Boost:        Boost(rel),
			Size:         fi.Size(),
			LastModified: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func matchesExcludePattern(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := path.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

func matchesAny(rel string, patterns []string) bool {
	for _, p := range patterns {
		if matchGlob(p, rel) {
			return true
		}
	}
	return false
}

func matchGlob(pattern, rel string) bool {
	pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "./")
	if pattern == "" {
		return false
	}

	if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
		segments := strings.Split(rel, "/")
		for i := 1; i <= len(segments); i++ {
			if matchGlob(dir, strings.Join(segments[:i], "/")) {
				return true
			}
		}
		return false
	}

	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		segments := strings.Split(rel, "/")
		for i := range segments {
			if matchGlob(rest, strings.Join(segments[i:], "/")) {
				return true
			}
		}
		return false
	}

	if ok, _ := path.Match(pattern, rel); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, path.Base(rel))
		return ok
	}
	return false
}
