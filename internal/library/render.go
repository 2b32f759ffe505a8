package library

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mdresch/requirements-gathering-agent/internal/tokens"
)

// Format selects how a Library is rendered into a context string.
type Format string

const (
	FormatStructured   Format = "structured"
	FormatConcatenated Format = "concatenated"
	FormatSummarized   Format = "summarized"
)

const (
	defaultTopFiles     = 10
	defaultSnippetChars = 2000
	truncatedMarker     = "[... truncated]"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatStructured, FormatConcatenated, FormatSummarized:
		return f, nil
	case "":
		return FormatStructured, nil
	default:
		return "", fmt.Errorf("unknown context format %q (want structured, concatenated or summarized)", s)
	}
}

// RenderOptions tunes rendering.
type RenderOptions struct {
	// TokenBudget caps structured and concatenated output; files past the
	// budget are replaced by a truncation notice. 0 means no cap.
	TokenBudget int

	// TopFiles is how many files the summarized format includes.
	TopFiles int

	// SnippetChars bounds each file's excerpt in the summarized format.
	SnippetChars int

	Estimator tokens.Estimator
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.TopFiles <= 0 {
		o.TopFiles = defaultTopFiles
	}
	if o.SnippetChars <= 0 {
		o.SnippetChars = defaultSnippetChars
	}
	if o.Estimator == nil {
		o.Estimator = tokens.NewCharEstimator(0)
	}
	return o
}

// Render turns lib into a single context string.
func Render(lib *Library, format Format, opts RenderOptions) (string, error) {
	if lib == nil {
		return "", fmt.Errorf("render: nil library")
	}
	opts = opts.withDefaults()

	switch format {
	case FormatStructured, "":
		return renderStructured(lib, opts), nil
	case FormatConcatenated:
		return renderConcatenated(lib, opts), nil
	case FormatSummarized:
		return renderSummarized(lib, opts), nil
	default:
		return "", fmt.Errorf("render: unknown format %q", format)
	}
}

// budgetWriter appends blocks until the token budget is spent.
type budgetWriter struct {
	sb      strings.Builder
	est     tokens.Estimator
	budget  int
	used    int
	dropped int
}

func (w *budgetWriter) add(block string) bool {
	if w.dropped > 0 {
		w.dropped++
		return false
	}
	n := w.est.Estimate(block)
	if w.budget > 0 && w.used+n > w.budget {
		w.dropped++
		return false
	}
	w.sb.WriteString(block)
	w.used += n
	return true
}

func (w *budgetWriter) String() string {
	if w.dropped == 0 {
		return w.sb.String()
	}
	return w.sb.String() + fmt.Sprintf("\n... %d more files truncated (token budget %d reached)\n", w.dropped, w.budget)
}

func renderStructured(lib *Library, opts RenderOptions) string {
	w := &budgetWriter{est: opts.Estimator, budget: opts.TokenBudget}

	var header strings.Builder
	header.WriteString("# Project Library\n\n")
	fmt.Fprintf(&header, "Files: %d | Tokens: %d | Ceiling: %d\n", lib.TotalFiles, lib.TotalTokens, lib.Ceiling)
	w.sb.WriteString(header.String())
	w.used = opts.Estimator.Estimate(header.String())

	for _, cat := range AllCategories {
		files := lib.Categories[cat]
		if len(files) == 0 {
			continue
		}
		heading := fmt.Sprintf("\n## %s (%d files)\n", cat.DisplayName(), len(files))
		headingWritten := false

		for _, f := range files {
			block := fileBlock(f)
			if !headingWritten {
				block = heading + block
			}
			if w.add(block) {
				headingWritten = true
			}
		}
	}
	return w.String()
}

func fileBlock(f ProjectFile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n### File: %s\n", f.Path)
	fmt.Fprintf(&sb, "- Category: %s\n", f.Category)
	fmt.Fprintf(&sb, "- Priority: %.2f\n", f.Priority)
	fmt.Fprintf(&sb, "- Tokens: %d\n", f.Tokens)
	if !f.LastModified.IsZero() {
		fmt.Fprintf(&sb, "- Modified: %s\n", f.LastModified.UTC().Format("2006-01-02 15:04"))
	}
	if len(f.Dependencies) > 0 {
		fmt.Fprintf(&sb, "- Dependencies: %s\n", strings.Join(f.Dependencies, ", "))
	}
	sb.WriteString("\n")
	sb.WriteString(f.Content)
	if !strings.HasSuffix(f.Content, "\n") {
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderConcatenated(lib *Library, opts RenderOptions) string {
	w := &budgetWriter{est: opts.Estimator, budget: opts.TokenBudget}
	for _, f := range lib.Files {
		var sb strings.Builder
		fmt.Fprintf(&sb, "=== FILE: %s ===\n", f.Path)
		sb.WriteString(f.Content)
		if !strings.HasSuffix(f.Content, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
		w.add(sb.String())
	}
	return w.String()
}

func renderSummarized(lib *Library, opts RenderOptions) string {
	var sb strings.Builder

	sb.WriteString("# Project Summary\n\n")
	fmt.Fprintf(&sb, "Total files: %d\n", lib.TotalFiles)
	fmt.Fprintf(&sb, "Total tokens: %d\n", lib.TotalTokens)
	if len(lib.Skipped) > 0 {
		fmt.Fprintf(&sb, "Skipped files: %d\n", len(lib.Skipped))
	}
	if lib.Truncated {
		sb.WriteString("Selection stopped at the token ceiling\n")
	}

	sb.WriteString("\n## Categories\n\n")
	for _, cat := range AllCategories {
		if files := lib.Categories[cat]; len(files) > 0 {
			fmt.Fprintf(&sb, "- %s: %d files, %d tokens\n", cat, len(files), lib.CategoryTokens(cat))
		}
	}

	top := lib.Files
	if len(top) > opts.TopFiles {
		top = top[:opts.TopFiles]
	}
	if len(top) > 0 {
		sb.WriteString("\n## Key Files\n")
	}
	for _, f := range top {
		fmt.Fprintf(&sb, "\n### %s (%s, priority %.2f)\n\n", f.Path, f.Category, f.Priority)
		sb.WriteString(Snippet(f.Content, opts.SnippetChars))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Snippet shortens s to at most limit runes, cutting at the last line
// break, or failing that the last space, in the second half of the
// window. A marker is appended when anything was cut.
func Snippet(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}

	cut := s
	n := 0
	for i := range s {
		if n == limit {
			cut = s[:i]
			break
		}
		n++
	}

	if i := strings.LastIndexByte(cut, '\n'); i >= len(cut)/2 {
		cut = cut[:i]
	} else if i := strings.LastIndexByte(cut, ' '); i >= len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \t\n") + "\n" + truncatedMarker
}
