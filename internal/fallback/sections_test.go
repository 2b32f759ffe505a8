package fallback

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdresch/requirements-gathering-agent/internal/tokens"
)

func TestSplitSections(t *testing.T) {
	content := "Preamble line.\n\n# Title\nBody.\n\n## Part A\n```\n# comment in code\n```\nSetext\n------\nMore.\n"

	sections := splitSections(content)
	require.Len(t, sections, 4)

	assert.Equal(t, 0, sections[0].level)
	assert.Equal(t, "Preamble line.\n\n", sections[0].text)

	assert.Equal(t, "Title", sections[1].title)
	assert.Equal(t, 1, sections[1].level)

	assert.Equal(t, "Part A", sections[2].title)
	assert.Contains(t, sections[2].text, "# comment in code")

	assert.Equal(t, "Setext", sections[3].title)
	assert.Equal(t, 2, sections[3].level)

	var joined strings.Builder
	for _, s := range sections {
		joined.WriteString(s.text)
	}
	assert.Equal(t, content, joined.String())
}

func TestSplitSectionsWithoutHeadings(t *testing.T) {
	assert.Nil(t, splitSections(""))

	sections := splitSections("just text\nand more\n")
	require.Len(t, sections, 1)
	assert.Equal(t, "just text\nand more\n", sections[0].text)
}

func TestSplitLines(t *testing.T) {
	assert.Empty(t, splitLines(""))
	assert.Equal(t, []string{"a\n", "b\n"}, splitLines("a\nb\n"))
	assert.Equal(t, []string{"a\n", "b"}, splitLines("a\nb"))
}

func TestClassifySectionsInherits(t *testing.T) {
	r := compileProfile("test", Profile{High: []string{`scope`}, Medium: []string{`risk`}}, nil)
	sections := splitSections("intro\n# Scope\n## Details\n# Risks\n## Sub\n# Other\n## Deep\n")

	got := classifySections(sections, r)
	want := []priority{priorityMedium, priorityHigh, priorityHigh, priorityMedium, priorityMedium, priorityLow, priorityLow}
	assert.Equal(t, want, got)
}

func TestSplitOversized(t *testing.T) {
	est := tokens.NewCharEstimator(4)
	line := strings.Repeat("abcdefgh", 10)

	parts := splitOversized(line, 5, est)
	assert.Equal(t, line, strings.Join(parts, ""))
	for _, p := range parts {
		assert.LessOrEqual(t, est.Estimate(p), 5)
	}
	assert.Len(t, parts, 4)
}

func TestNormalizeDocumentType(t *testing.T) {
	tests := map[string]string{
		"Project Charter":  "project-charter",
		"project_charter":  "project-charter",
		" risk--register ": "risk-register",
		"technical-design": "technical-design",
		"":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeDocumentType(in), in)
	}
}
