package fallback

import (
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	markdownOnce   sync.Once
	markdownParser goldmark.Markdown
)

func parser() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownParser = goldmark.New()
	})
	return markdownParser
}

// section is a heading and everything up to the next top-level heading.
// The preamble before the first heading has level 0 and no title.
type section struct {
	title string
	level int
	text  string
}

// splitSections cuts content at its block-level headings. Heading-like
// lines inside code fences are not boundaries. Concatenating the texts
// of the returned sections reproduces content exactly.
func splitSections(content string) []section {
	if content == "" {
		return nil
	}
	src := []byte(content)
	doc := parser().Parser().Parse(text.NewReader(src))

	type mark struct {
		offset int
		title  string
		level  int
	}
	var marks []mark
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		seg := h.Lines().At(0)
		marks = append(marks, mark{
			offset: lineStart(src, seg.Start),
			title:  strings.TrimSpace(string(h.Lines().Value(src))),
			level:  h.Level,
		})
	}

	if len(marks) == 0 {
		return []section{{text: content}}
	}

	var out []section
	if marks[0].offset > 0 {
		out = append(out, section{text: content[:marks[0].offset]})
	}
	for i, m := range marks {
		end := len(content)
		if i+1 < len(marks) {
			end = marks[i+1].offset
		}
		out = append(out, section{title: m.title, level: m.level, text: content[m.offset:end]})
	}
	return out
}

func lineStart(src []byte, pos int) int {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

// splitLines splits s after every newline, keeping the terminators.
func splitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// isHeadingLine reports whether a line starts with a markdown heading
// marker.
func isHeadingLine(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " "), "#")
}
