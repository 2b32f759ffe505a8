package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/mdresch/requirements-gathering-agent/internal/library"
)

func setupProject(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/proj/README.md":                 "# Project\n",
		"/proj/go.mod":                    "module example.com/proj\n",
		"/proj/main.go":                   "package main\n",
		"/proj/docs/vision.md":            "vision\n",
		"/proj/internal/store/db.go":      "package store\n",
		"/proj/internal/store/db_test.go": "package store\n",
		"/proj/scripts/build.sh":          "#!/bin/sh\n",
		"/proj/templates/charter.tmpl":    "{{.Name}}\n",
		"/proj/data/seed.csv":             "a,b\n",
		"/proj/examples/demo.go":          "package main\n",
		"/proj/node_modules/x/index.js":   "module.exports = 1\n",
		"/proj/.git/HEAD":                 "ref: refs/heads/main\n",
		"/proj/.env":                      "SECRET=1\n",
		"/proj/app.log":                   "noise\n",
		"/proj/go.sum":                    "sum\n",
	}
	for p, c := range files {
		if err := afero.WriteFile(fs, p, []byte(c), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", p, err)
		}
	}
	return fs
}

func paths(candidates []library.Candidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Path)
	}
	return out
}

func TestDiscoverAppliesDefaultExclusions(t *testing.T) {
	fs := setupProject(t)
	e := NewExplorer(fs, DefaultOptions())

	got, err := e.Discover(context.Background(), "/proj", nil, nil)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	want := []string{
		"README.md",
		"data/seed.csv",
		"docs/vision.md",
		"examples/demo.go",
		"go.mod",
		"internal/store/db.go",
		"internal/store/db_test.go",
		"main.go",
		"scripts/build.sh",
		"templates/charter.tmpl",
	}
	gotPaths := paths(got)
	if len(gotPaths) != len(want) {
		t.Fatalf("Expected %d candidates, got %d: %v", len(want), len(gotPaths), gotPaths)
	}
	for i := range want {
		if gotPaths[i] != want[i] {
			t.Errorf("Candidate %d: expected %s, got %s", i, want[i], gotPaths[i])
		}
	}

	for _, c := range got {
		if c.AbsPath == "" {
			t.Errorf("Candidate %s has no absolute path", c.Path)
		}
		if c.Size == 0 {
			t.Errorf("Candidate %s has no size", c.Path)
		}
	}
}

func TestDiscoverIncludeExclude(t *testing.T) {
	fs := setupProject(t)
	e := NewExplorer(fs, DefaultOptions())

	got, err := e.Discover(context.Background(), "/proj", []string{"**/*.go"}, []string{"examples/**", "*_test.go"})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	gotPaths := paths(got)
	want := []string{"internal/store/db.go", "main.go"}
	if len(gotPaths) != len(want) || gotPaths[0] != want[0] || gotPaths[1] != want[1] {
		t.Errorf("Expected %v, got %v", want, gotPaths)
	}
}

func TestDiscoverRejectsMissingRoot(t *testing.T) {
	e := NewExplorer(afero.NewMemMapFs(), DefaultOptions())
	if _, err := e.Discover(context.Background(), "/nope", nil, nil); err == nil {
		t.Error("Expected error for missing root")
	}
}

func TestDiscoverHonorsCancellation(t *testing.T) {
	fs := setupProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewExplorer(fs, DefaultOptions()).Discover(ctx, "/proj", nil, nil); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestDiscoverRecordsModTime(t *testing.T) {
	fs := setupProject(t)
	stamp := time.Date(2023, 3, 4, 5, 6, 7, 0, time.UTC)
	if err := fs.Chtimes("/proj/README.md", stamp, stamp); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	got, err := NewExplorer(fs, DefaultOptions()).Discover(context.Background(), "/proj", []string{"README.md"}, nil)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(got) != 1 || !got[0].LastModified.Equal(stamp) {
		t.Errorf("Expected README.md modified at %v, got %+v", stamp, got)
	}
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		rel     string
		want    bool
	}{
		{"*.md", "docs/a.md", true},
		{"docs/*.md", "docs/a.md", true},
		{"docs/*.md", "docs/sub/a.md", false},
		{"docs/**", "docs/sub/a.md", true},
		{"**/*.md", "a/b/c.md", true},
		{"**/*.md", "c.md", true},
		{"**/vendor/**", "x/vendor/y.go", true},
		{"./main.go", "main.go", true},
		{"*.go", "main.ts", false},
		{"", "main.go", false},
	}
	for _, tt := range tests {
		if got := matchGlob(tt.pattern, tt.rel); got != tt.want {
			t.Errorf("matchGlob(%q, %q) = %v, want %v", tt.pattern, tt.rel, got, tt.want)
		}
	}
}
