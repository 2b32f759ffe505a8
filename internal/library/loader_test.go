package library

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdresch/requirements-gathering-agent/internal/tokens"
)

// flatWeights makes Candidate.Boost the exact priority.
var flatWeights = map[Category]float64{CategoryOther: 0}

func writeFile(t *testing.T, fs afero.Fs, path string, tokenCount int) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(strings.Repeat("a", tokenCount*4)), 0644))
}

func newTestLoader(fs afero.Fs) *Loader {
	return NewLoader(fs, tokens.NewCharEstimator(4))
}

func TestLoadSelectsGreedyPrefix(t *testing.T) {
	fs := afero.NewMemMapFs()
	priorities := []float64{0.9, 0.8, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}
	sizes := []int{300, 200, 200, 150, 100, 10, 10, 10, 10, 10}

	var candidates []Candidate
	for i, p := range priorities {
		path := fmt.Sprintf("f%02d.txt", i)
		writeFile(t, fs, path, sizes[i])
		candidates = append(candidates, Candidate{Path: path, Category: CategoryOther, Boost: p, Size: int64(sizes[i] * 4)})
	}

	lib, err := newTestLoader(fs).Load(context.Background(), "mem", candidates, Options{
		MaxTokens:       1000,
		CategoryWeights: flatWeights,
	})
	require.NoError(t, err)

	var paths []string
	for _, f := range lib.Files {
		paths = append(paths, f.Path)
	}
	// f04 would push the total to 950; the walk stops there even though
	// later files are small enough to fit.
	assert.Equal(t, []string{"f00.txt", "f01.txt", "f02.txt", "f03.txt"}, paths)
	assert.Equal(t, 850, lib.TotalTokens)
	assert.Equal(t, 900, lib.Ceiling)
	assert.Equal(t, 4, lib.TotalFiles)
	assert.True(t, lib.Truncated)
	assert.LessOrEqual(t, lib.TotalTokens, 900)

	for i := 1; i < len(lib.Files); i++ {
		assert.GreaterOrEqual(t, lib.Files[i-1].Priority, lib.Files[i].Priority)
	}
}

func TestLoadSkipsUnreadableFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "ok.md", 10)

	lib, err := newTestLoader(fs).Load(context.Background(), "mem", []Candidate{
		{Path: "missing.md", Category: CategoryDocumentation, Boost: 0.1},
		{Path: "ok.md", Category: CategoryDocumentation},
	}, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, lib.Files, 1)
	assert.Equal(t, "ok.md", lib.Files[0].Path)
	require.Len(t, lib.Skipped, 1)
	assert.Equal(t, "missing.md", lib.Skipped[0].Path)
	assert.NotEmpty(t, lib.Skipped[0].Reason)
}

func TestLoadRecencyBreaksNearTies(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, p := range []string{"old.md", "new.md", "low.md"} {
		writeFile(t, fs, p, 5)
	}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	candidates := []Candidate{
		{Path: "old.md", Category: CategoryOther, Boost: 0.80, LastModified: now.Add(-48 * time.Hour)},
		{Path: "new.md", Category: CategoryOther, Boost: 0.75, LastModified: now},
		{Path: "low.md", Category: CategoryOther, Boost: 0.50, LastModified: now.Add(time.Hour)},
	}

	lib, err := newTestLoader(fs).Load(context.Background(), "mem", candidates, Options{
		PrioritizeRecent: true,
		CategoryWeights:  flatWeights,
	})
	require.NoError(t, err)
	require.Len(t, lib.Files, 3)
	assert.Equal(t, "new.md", lib.Files[0].Path)
	assert.Equal(t, "old.md", lib.Files[1].Path)
	assert.Equal(t, "low.md", lib.Files[2].Path, "recency must not beat a clear priority gap")

	lib, err = newTestLoader(fs).Load(context.Background(), "mem", candidates, Options{
		CategoryWeights: flatWeights,
	})
	require.NoError(t, err)
	assert.Equal(t, "old.md", lib.Files[0].Path)
}

func TestLoadRecencyKeepsFullEpsilonGap(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, p := range []string{"go.mod", "main.go", "a.md", "b.md"} {
		writeFile(t, fs, p, 5)
	}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	lib, err := newTestLoader(fs).Load(context.Background(), "mem", []Candidate{
		{Path: "go.mod", Category: CategoryConfiguration, LastModified: now.Add(-time.Hour)},
		{Path: "main.go", Category: CategorySourceCode, LastModified: now},
	}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, lib.Files, 2)
	assert.Equal(t, "go.mod", lib.Files[0].Path)
	assert.Equal(t, "main.go", lib.Files[1].Path)

	lib, err = newTestLoader(fs).Load(context.Background(), "mem", []Candidate{
		{Path: "a.md", Category: CategoryOther, Boost: 0.9, LastModified: now.Add(-48 * time.Hour)},
		{Path: "b.md", Category: CategoryOther, Boost: 0.8, LastModified: now},
	}, Options{PrioritizeRecent: true, CategoryWeights: flatWeights})
	require.NoError(t, err)
	require.Len(t, lib.Files, 2)
	assert.Equal(t, "a.md", lib.Files[0].Path)
	assert.Equal(t, "b.md", lib.Files[1].Path)
}

func TestLoadCategoriesAndDependencies(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "README.md", 10)
	require.NoError(t, afero.WriteFile(fs, "main.go", []byte("import \"github.com/spf13/cobra\"\n"), 0644))
	writeFile(t, fs, "config.yaml", 10)

	extract := func(path, content string) []string {
		if strings.HasSuffix(path, ".go") {
			return []string{"github.com/spf13/cobra"}
		}
		return nil
	}
	loader := NewLoader(fs, tokens.NewCharEstimator(4), WithDependencyExtractor(extract))

	lib, err := loader.Load(context.Background(), "mem", []Candidate{
		{Path: "README.md", Category: CategoryDocumentation},
		{Path: "main.go", Category: CategorySourceCode},
		{Path: "config.yaml", Category: CategoryConfiguration},
	}, DefaultOptions())
	require.NoError(t, err)

	total := 0
	for _, files := range lib.Categories {
		total += len(files)
	}
	assert.Equal(t, len(lib.Files), total)
	assert.Len(t, lib.Categories[CategorySourceCode], 1)

	assert.Equal(t, map[string][]string{"main.go": {"github.com/spf13/cobra"}}, lib.Dependencies)

	sum := 0
	for _, f := range lib.Files {
		sum += f.Tokens
	}
	assert.Equal(t, lib.TotalTokens, sum)
}

func TestLoadSizeBounds(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "tiny.txt", 1)
	writeFile(t, fs, "mid.txt", 50)
	writeFile(t, fs, "huge.txt", 500)

	lib, err := newTestLoader(fs).Load(context.Background(), "mem", []Candidate{
		{Path: "tiny.txt", Size: 4},
		{Path: "mid.txt", Size: 200},
		{Path: "huge.txt", Size: 2000},
	}, Options{MinFileSize: 10, MaxFileSize: 1000})
	require.NoError(t, err)
	require.Len(t, lib.Files, 1)
	assert.Equal(t, "mid.txt", lib.Files[0].Path)
}

func TestPriorityIsCapped(t *testing.T) {
	opts := Options{}
	assert.Equal(t, 1.0, opts.Priority(Candidate{Category: CategoryDocumentation, Boost: 0.5}))
	assert.Equal(t, 0.3, opts.Priority(Candidate{Category: CategoryTests}))
	assert.Equal(t, 0.3, opts.Priority(Candidate{Category: CategoryTests, Boost: -1}))

	opts.CategoryWeights = map[Category]float64{CategoryTests: 0.9}
	assert.Equal(t, 0.9, opts.Priority(Candidate{Category: CategoryTests}))
}

func TestLoadIsCachedAndIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "a.md", 10)
	writeFile(t, fs, "b.md", 20)
	candidates := []Candidate{
		{Path: "a.md", Category: CategoryDocumentation},
		{Path: "b.md", Category: CategorySourceCode},
	}
	loader := newTestLoader(fs)
	opts := DefaultOptions()

	first, err := loader.Load(context.Background(), "mem", candidates, opts)
	require.NoError(t, err)

	// Removing a file must not matter: the cached library is returned.
	require.NoError(t, fs.Remove("a.md"))
	second, err := loader.Load(context.Background(), "mem", candidates, opts)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, CacheStats{Hits: 1, Misses: 1, Entries: 1}, loader.CacheStats())

	opts.MaxTokens = 500
	third, err := loader.Load(context.Background(), "mem", candidates, opts)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Len(t, third.Skipped, 1)

	loader.Invalidate("mem")
	assert.Equal(t, 0, loader.CacheStats().Entries)

	// A fresh loader over identical input produces an identical library.
	fs2 := afero.NewMemMapFs()
	writeFile(t, fs2, "a.md", 10)
	writeFile(t, fs2, "b.md", 20)
	again, err := newTestLoader(fs2).Load(context.Background(), "mem", candidates, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

type countingDiscoverer struct {
	calls      int
	candidates []Candidate
}

func (d *countingDiscoverer) Discover(ctx context.Context, root string, include, exclude []string) ([]Candidate, error) {
	d.calls++
	return d.candidates, nil
}

func TestLoadProjectUsesDiscovererOnce(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/proj/README.md", 10)
	d := &countingDiscoverer{candidates: []Candidate{
		{Path: "README.md", AbsPath: "/proj/README.md", Category: CategoryDocumentation},
	}}
	loader := NewLoader(fs, nil, WithDiscoverer(d))

	lib, err := loader.LoadProject(context.Background(), "/proj", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, lib.Files, 1)
	assert.Equal(t, "README.md", lib.Files[0].Path)

	_, err = loader.LoadProject(context.Background(), "/proj", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, d.calls)
}

func TestLoadProjectWithoutDiscoverer(t *testing.T) {
	_, err := newTestLoader(afero.NewMemMapFs()).LoadProject(context.Background(), "/proj", DefaultOptions())
	assert.Error(t, err)
}

func TestLoadHonorsCancellation(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "a.md", 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestLoader(fs).Load(ctx, "mem", []Candidate{{Path: "a.md"}}, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}
