package fallback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mdresch/requirements-gathering-agent/internal/provider"
	"github.com/mdresch/requirements-gathering-agent/internal/tokens"
)

// chunkDivider separates chunks in chunked output.
const chunkDivider = "\n\n---\n\n"

const (
	keywordWeight = 0.7
	headingWeight = 0.3
)

// Input is what a Reducer works on.
type Input struct {
	Content        string
	DocumentType   string
	Target         int
	OriginalTokens int
	Options        Options
	Estimator      tokens.Estimator

	rules *rules
}

// Outcome is a Reducer's proposal. The Engine re-estimates Content and
// rejects outcomes that do not fit.
type Outcome struct {
	Content  string
	Provider *provider.Capability
	Warnings []string
}

// Reducer is one fallback strategy.
type Reducer interface {
	Strategy() Strategy
	Reduce(ctx context.Context, in Input) (Outcome, error)
}

// CapabilityRegistry answers provider window questions.
type CapabilityRegistry interface {
	GetMaxWindow(provider, model string) (int, bool)
	OptimalProviderForLargeContext(minTokens int, exclude ...string) (provider.Capability, bool)
}

// ProviderSwitch keeps content intact and moves to another provider whose
// window holds all of it, or Options.MinWindow when that is larger.
type ProviderSwitch struct {
	Registry CapabilityRegistry
}

func (ProviderSwitch) Strategy() Strategy { return StrategyProviderSwitch }

func (s ProviderSwitch) Reduce(_ context.Context, in Input) (Outcome, error) {
	if s.Registry == nil {
		return Outcome{}, errors.New("no provider registry configured")
	}
	need := in.OriginalTokens
	if in.Options.MinWindow > need {
		need = in.Options.MinWindow
	}

	current := in.Options.CurrentProvider
	c, ok := s.Registry.OptimalProviderForLargeContext(need, current)
	if !ok {
		if current != "" {
			return Outcome{}, fmt.Errorf("no provider other than the current provider %s has a window of %d tokens", current, need)
		}
		return Outcome{}, fmt.Errorf("no configured provider has a window of %d tokens", need)
	}
	if current == "" {
		current = "the selected provider"
	}
	return Outcome{
		Content:  in.Content,
		Provider: &c,
		Warnings: []string{fmt.Sprintf("switched from %s to %s (window %d tokens) to keep all %d tokens of context",
			current, c.Name, c.ContextWindow, in.OriginalTokens)},
	}, nil
}

// Prioritization keeps every high-priority section, fills the remaining
// budget with medium-priority lines in document order and drops the rest.
type Prioritization struct{}

func (Prioritization) Strategy() Strategy { return StrategyPrioritization }

func (Prioritization) Reduce(ctx context.Context, in Input) (Outcome, error) {
	sections := splitSections(in.Content)
	classes := classifySections(sections, in.rules)

	var high strings.Builder
	hasMedium := false
	for i, s := range sections {
		switch classes[i] {
		case priorityHigh:
			high.WriteString(s.text)
		case priorityMedium:
			hasMedium = true
		}
	}
	if high.Len() == 0 && !hasMedium {
		return Outcome{}, fmt.Errorf("no high or medium priority sections for %s", in.DocumentType)
	}

	highTokens := in.Estimator.Estimate(high.String())
	if highTokens > in.Target {
		sub := in
		sub.Content = high.String()
		out, err := Summarization{}.Reduce(ctx, sub)
		if err != nil {
			return Outcome{}, fmt.Errorf("high-priority content (%d tokens) over target: %w", highTokens, err)
		}
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("high-priority sections alone need %d tokens; summarized them", highTokens))
		return out, nil
	}

	remaining := in.Target - highTokens
	var sb strings.Builder
	droppedLines := 0
	for i, s := range sections {
		switch classes[i] {
		case priorityHigh:
			sb.WriteString(s.text)
		case priorityMedium:
			for _, line := range splitLines(s.text) {
				n := in.Estimator.Estimate(line)
				if n > remaining {
					droppedLines++
					continue
				}
				sb.WriteString(line)
				remaining -= n
			}
		}
	}

	out := Outcome{Content: sb.String()}
	if droppedLines > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf("dropped %d medium-priority lines over budget", droppedLines))
	}
	return out, nil
}

// classifySections gives each section the priority of its heading. A
// section whose heading matches nothing inherits a non-low priority from
// its nearest enclosing heading. The preamble counts as medium.
func classifySections(sections []section, r *rules) []priority {
	type frame struct {
		level int
		class priority
	}
	var stack []frame
	out := make([]priority, len(sections))
	for i, s := range sections {
		if s.level == 0 {
			out[i] = priorityMedium
			continue
		}
		for len(stack) > 0 && stack[len(stack)-1].level >= s.level {
			stack = stack[:len(stack)-1]
		}
		class := r.classify(s.title)
		if class == priorityLow && len(stack) > 0 {
			class = stack[len(stack)-1].class
		}
		stack = append(stack, frame{level: s.level, class: class})
		out[i] = class
	}
	return out
}

// Summarization keeps heading lines and the body lines that mention an
// important term, each only while it still fits the budget.
type Summarization struct{}

func (Summarization) Strategy() Strategy { return StrategySummarization }

func (Summarization) Reduce(_ context.Context, in Input) (Outcome, error) {
	var sb strings.Builder
	remaining := in.Target
	kept, body := 0, 0
	for _, line := range splitLines(in.Content) {
		heading := isHeadingLine(line)
		if !heading && !in.rules.mentionsTerm(line) {
			continue
		}
		n := in.Estimator.Estimate(line)
		if n > remaining {
			continue
		}
		sb.WriteString(line)
		remaining -= n
		kept++
		if !heading {
			body++
		}
	}
	if body == 0 {
		return Outcome{}, fmt.Errorf("no lines mention an important term for %s", in.DocumentType)
	}
	return Outcome{
		Content:  sb.String(),
		Warnings: []string{fmt.Sprintf("summarized to %d lines (%d body lines)", kept, body)},
	}, nil
}

// Chunking splits content into section chunks no larger than the budget,
// ranks them by relevance and keeps the best that fit.
type Chunking struct{}

func (Chunking) Strategy() Strategy { return StrategyChunking }

type chunk struct {
	text  string
	score float64
}

func (Chunking) Reduce(ctx context.Context, in Input) (Outcome, error) {
	chunks := buildChunks(in.Content, in.Target, in.Estimator)
	if len(chunks) == 0 {
		return Outcome{}, errors.New("content produced no chunks")
	}
	for i := range chunks {
		chunks[i].score = scoreChunk(chunks[i].text, in.rules)
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].score > chunks[j].score })

	var out string
	used := 0
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		candidate := c.text
		if out != "" {
			candidate = out + chunkDivider + c.text
		}
		if in.Estimator.Estimate(candidate) > in.Target {
			continue
		}
		out = candidate
		used++
	}
	if used == 0 {
		return Outcome{}, errors.New("no chunk fits the target")
	}
	return Outcome{
		Content:  out,
		Warnings: []string{fmt.Sprintf("kept %d of %d chunks ranked by relevance to %s", used, len(chunks), in.DocumentType)},
	}, nil
}

// buildChunks turns sections into chunks of at most target tokens,
// re-splitting oversized sections line by line.
func buildChunks(content string, target int, est tokens.Estimator) []chunk {
	var texts []string
	for _, s := range splitSections(content) {
		if strings.TrimSpace(s.text) == "" {
			continue
		}
		if est.Estimate(s.text) <= target {
			texts = append(texts, s.text)
			continue
		}

		var cur strings.Builder
		flush := func() {
			if strings.TrimSpace(cur.String()) != "" {
				texts = append(texts, cur.String())
			}
			cur.Reset()
		}
		for _, line := range splitLines(s.text) {
			if est.Estimate(cur.String()+line) <= target {
				cur.WriteString(line)
				continue
			}
			flush()
			if est.Estimate(line) <= target {
				cur.WriteString(line)
				continue
			}
			texts = append(texts, splitOversized(line, target, est)...)
		}
		flush()
	}

	out := make([]chunk, 0, len(texts))
	for _, t := range texts {
		out = append(out, chunk{text: strings.TrimRight(t, "\n")})
	}
	return out
}

// splitOversized cuts a single line that alone exceeds target into the
// longest rune prefixes that fit.
func splitOversized(line string, target int, est tokens.Estimator) []string {
	var out []string
	for line != "" {
		runes := utf8.RuneCountInString(line)
		lo, hi := 1, runes
		for lo < hi {
			mid := (lo + hi + 1) / 2
			if est.Estimate(prefixRunes(line, mid)) <= target {
				lo = mid
			} else {
				hi = mid - 1
			}
		}
		part := prefixRunes(line, lo)
		if est.Estimate(part) > target {
			break
		}
		out = append(out, part)
		line = line[len(part):]
	}
	return out
}

func prefixRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// scoreChunk weighs important-term overlap against heading density.
func scoreChunk(text string, r *rules) float64 {
	lines := 0
	headings := 0
	for _, line := range splitLines(text) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines++
		if isHeadingLine(line) {
			headings++
		}
	}
	density := 0.0
	if lines > 0 {
		density = float64(headings) / float64(lines)
	}
	return r.termOverlap(text)*keywordWeight + density*headingWeight
}
