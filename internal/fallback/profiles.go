package fallback

import (
	"log/slog"
	"regexp"
	"strings"
)

// DefaultProfile is used for document types without a profile of their own.
const DefaultProfile = "default"

// Profile tells the reducing strategies what matters for one document
// type. High and Medium are case-insensitive regular expressions matched
// against section headings. ImportantTerms are case-insensitive substrings
// that keep body lines alive during summarization and score chunks.
type Profile struct {
	High           []string `mapstructure:"high" json:"high,omitempty"`
	Medium         []string `mapstructure:"medium" json:"medium,omitempty"`
	ImportantTerms []string `mapstructure:"important_terms" json:"important_terms,omitempty"`
}

// DefaultProfiles returns the built-in document type profiles.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		"project-charter": {
			High:           []string{`objective`, `scope`, `deliverable`, `success criteria`, `stakeholder`, `budget`, `milestone`, `timeline`},
			Medium:         []string{`risk`, `assumption`, `constraint`, `approach`, `governance`},
			ImportantTerms: []string{"objective", "scope", "deliverable", "milestone", "budget", "sponsor", "stakeholder", "success", "requirement", "risk"},
		},
		"requirements": {
			High:           []string{`functional requirement`, `non-functional`, `user stor(y|ies)`, `acceptance criteria`, `business requirement`},
			Medium:         []string{`use case`, `constraint`, `assumption`, `dependenc`, `interface`},
			ImportantTerms: []string{"must", "shall", "should", "requirement", "acceptance", "criteria", "user", "priority"},
		},
		"technical-design": {
			High:           []string{`architecture`, `component`, `interface`, `\bapi\b`, `data model`, `security`},
			Medium:         []string{`deployment`, `performance`, `integration`, `testing`, `monitoring`},
			ImportantTerms: []string{"api", "service", "database", "component", "interface", "protocol", "latency", "scalab"},
		},
		"risk-register": {
			High:           []string{`risk`, `mitigation`, `impact`, `probability`, `likelihood`},
			Medium:         []string{`owner`, `contingency`, `trigger`, `monitoring`, `response`},
			ImportantTerms: []string{"risk", "impact", "probability", "likelihood", "mitigation", "severity", "owner"},
		},
		"stakeholder-analysis": {
			High:           []string{`stakeholder`, `influence`, `interest`, `engagement`},
			Medium:         []string{`communication`, `role`, `responsibilit`, `expectation`},
			ImportantTerms: []string{"stakeholder", "sponsor", "influence", "interest", "engagement", "power", "communication"},
		},
		DefaultProfile: {
			High:           []string{`overview`, `summary`, `objective`, `requirement`, `scope`},
			Medium:         []string{`background`, `detail`, `approach`, `design`, `architecture`},
			ImportantTerms: []string{"important", "critical", "must", "required", "key", "objective", "requirement"},
		},
	}
}

// NormalizeDocumentType lowercases name and joins words with hyphens, so
// "Project Charter" and "project_charter" select the same profile.
func NormalizeDocumentType(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), "-")
}

type priority int

const (
	priorityLow priority = iota
	priorityMedium
	priorityHigh
)

type rules struct {
	high   []*regexp.Regexp
	medium []*regexp.Regexp
	terms  []string
}

func compileProfile(name string, p Profile, logger *slog.Logger) *rules {
	r := &rules{
		high:   compilePatterns(name, p.High, logger),
		medium: compilePatterns(name, p.Medium, logger),
	}
	for _, t := range p.ImportantTerms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			r.terms = append(r.terms, t)
		}
	}
	return r
}

// compilePatterns compiles case-insensitive patterns. A pattern that is
// not a valid expression is matched literally.
func compilePatterns(profile string, patterns []string, logger *slog.Logger) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			logger.Warn("invalid heading pattern, matching literally", "profile", profile, "pattern", p, "error", err)
			re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(p))
		}
		out = append(out, re)
	}
	return out
}

func (r *rules) classify(heading string) priority {
	if r == nil {
		return priorityLow
	}
	for _, re := range r.high {
		if re.MatchString(heading) {
			return priorityHigh
		}
	}
	for _, re := range r.medium {
		if re.MatchString(heading) {
			return priorityMedium
		}
	}
	return priorityLow
}

// mentionsTerm reports whether line contains any important term.
func (r *rules) mentionsTerm(line string) bool {
	if r == nil {
		return false
	}
	lower := strings.ToLower(line)
	for _, t := range r.terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// termOverlap is the fraction of important terms that appear in s.
func (r *rules) termOverlap(s string) float64 {
	if r == nil || len(r.terms) == 0 {
		return 0
	}
	lower := strings.ToLower(s)
	hits := 0
	for _, t := range r.terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(r.terms))
}
