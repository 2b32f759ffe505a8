package library

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLibrary() *Library {
	files := []ProjectFile{
		{Path: "README.md", Content: "# Demo\nA demo project.", Tokens: 6, Category: CategoryDocumentation, Priority: 1.0,
			LastModified: time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)},
		{Path: "config.yaml", Content: "name: demo\n", Tokens: 3, Category: CategoryConfiguration, Priority: 0.7},
		{Path: "main.go", Content: "package main\n", Tokens: 4, Category: CategorySourceCode, Priority: 0.6,
			Dependencies: []string{"github.com/spf13/cobra"}},
	}
	lib := &Library{
		Files:        files,
		TotalFiles:   len(files),
		TotalTokens:  13,
		MaxTokens:    1000,
		Ceiling:      900,
		Categories:   map[Category][]ProjectFile{},
		Dependencies: map[string][]string{"main.go": {"github.com/spf13/cobra"}},
	}
	for _, f := range files {
		lib.Categories[f.Category] = append(lib.Categories[f.Category], f)
	}
	return lib
}

func TestRenderStructured(t *testing.T) {
	out, err := Render(sampleLibrary(), FormatStructured, RenderOptions{})
	require.NoError(t, err)

	assert.Contains(t, out, "## Documentation (1 files)")
	assert.Contains(t, out, "### File: README.md")
	assert.Contains(t, out, "- Priority: 1.00")
	assert.Contains(t, out, "- Modified: 2024-01-02 03:04")
	assert.Contains(t, out, "- Dependencies: github.com/spf13/cobra")
	assert.NotContains(t, out, "truncated")

	// Categories appear in rendering order.
	assert.Less(t, strings.Index(out, "## Documentation"), strings.Index(out, "## Configuration"))
	assert.Less(t, strings.Index(out, "## Configuration"), strings.Index(out, "## Source Code"))
}

func TestRenderStructuredTruncatesTail(t *testing.T) {
	lib := sampleLibrary()
	lib.Files[0].Content = strings.Repeat("word ", 40)
	lib.Categories[CategoryDocumentation][0].Content = lib.Files[0].Content

	out, err := Render(lib, FormatStructured, RenderOptions{TokenBudget: 120})
	require.NoError(t, err)
	assert.Contains(t, out, "### File: README.md")
	assert.NotContains(t, out, "### File: main.go")
	assert.Contains(t, out, "more files truncated")
}

func TestRenderConcatenated(t *testing.T) {
	out, err := Render(sampleLibrary(), FormatConcatenated, RenderOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(out, "=== FILE: "))
	assert.True(t, strings.HasPrefix(out, "=== FILE: README.md ===\n# Demo"))
	assert.Less(t, strings.Index(out, "config.yaml"), strings.Index(out, "main.go"))
}

func TestRenderSummarized(t *testing.T) {
	lib := sampleLibrary()
	lib.Files[0].Content = strings.Repeat("line of text\n", 50)

	out, err := Render(lib, FormatSummarized, RenderOptions{TopFiles: 2, SnippetChars: 40})
	require.NoError(t, err)

	assert.Contains(t, out, "Total files: 3")
	assert.Contains(t, out, "- documentation: 1 files, 6 tokens")
	assert.Contains(t, out, "### README.md (documentation, priority 1.00)")
	assert.Contains(t, out, "### config.yaml")
	assert.NotContains(t, out, "### main.go")
	assert.Contains(t, out, truncatedMarker)
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	_, err := Render(sampleLibrary(), Format("xml"), RenderOptions{})
	assert.Error(t, err)

	_, err = Render(nil, FormatStructured, RenderOptions{})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Summarized")
	require.NoError(t, err)
	assert.Equal(t, FormatSummarized, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatStructured, f)

	_, err = ParseFormat("yaml")
	assert.Error(t, err)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet("short", 100))

	text := "first line here\nsecond line here\nthird line"
	got := Snippet(text, 25)
	assert.Equal(t, "first line here\n"+truncatedMarker, got)

	got = Snippet("alpha beta gamma delta epsilon", 20)
	assert.Equal(t, "alpha beta gamma\n"+truncatedMarker, got)

	got = Snippet(strings.Repeat("x", 30), 10)
	assert.Equal(t, strings.Repeat("x", 10)+"\n"+truncatedMarker, got)
}
