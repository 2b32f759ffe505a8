package library

import "time"

// Category classifies a project file for weighting and grouping.
type Category string

const (
	CategoryDocumentation Category = "documentation"
	CategorySourceCode    Category = "source_code"
	CategoryConfiguration Category = "configuration"
	CategoryTemplates     Category = "templates"
	CategoryData          Category = "data"
	CategoryTests         Category = "tests"
	CategoryScripts       Category = "scripts"
	CategoryExamples      Category = "examples"
	CategoryOther         Category = "other"
)

// AllCategories lists every category in rendering order.
var AllCategories = []Category{
	CategoryDocumentation,
	CategoryConfiguration,
	CategorySourceCode,
	CategoryTemplates,
	CategoryData,
	CategoryExamples,
	CategoryTests,
	CategoryScripts,
	CategoryOther,
}

// DefaultCategoryWeights is the base priority for each category before
// location and filename boosts are added.
var DefaultCategoryWeights = map[Category]float64{
	CategoryDocumentation: 0.8,
	CategoryConfiguration: 0.7,
	CategorySourceCode:    0.6,
	CategoryTemplates:     0.5,
	CategoryData:          0.4,
	CategoryExamples:      0.4,
	CategoryTests:         0.3,
	CategoryScripts:       0.3,
	CategoryOther:         0.2,
}

// ParseCategory maps a config string to a Category. Unknown names map to
// CategoryOther and ok=false.
func ParseCategory(name string) (Category, bool) {
	for _, c := range AllCategories {
		if string(c) == name {
			return c, true
		}
	}
	return CategoryOther, false
}

// DisplayName returns a human-readable category label.
func (c Category) DisplayName() string {
	switch c {
	case CategoryDocumentation:
		return "Documentation"
	case CategorySourceCode:
		return "Source Code"
	case CategoryConfiguration:
		return "Configuration"
	case CategoryTemplates:
		return "Templates"
	case CategoryData:
		return "Data"
	case CategoryTests:
		return "Tests"
	case CategoryScripts:
		return "Scripts"
	case CategoryExamples:
		return "Examples"
	default:
		return "Other"
	}
}

// Candidate is a discovered file that has not been read yet.
type Candidate struct {
	Path         string    // relative, slash-separated, unique within a load
	AbsPath      string    // path handed to the filesystem; Path is used when empty
	Category     Category
	Boost        float64   // filename/location boosts, added to the category weight
	Size         int64
	LastModified time.Time
}

// ProjectFile is one file selected into a Library.
type ProjectFile struct {
	Path         string
	Content      string
	Tokens       int
	Category     Category
	Priority     float64
	Size         int64
	LastModified time.Time
	Dependencies []string
}

// SkippedFile records a candidate the loader could not include.
type SkippedFile struct {
	Path   string
	Reason string
}

// Library is the result of one bounded load. It is shared through the
// loader cache and must be treated as read-only.
type Library struct {
	Source       string
	Files        []ProjectFile
	TotalTokens  int
	TotalFiles   int
	MaxTokens    int
	Ceiling      int
	Categories   map[Category][]ProjectFile
	Dependencies map[string][]string
	Skipped      []SkippedFile

	// Truncated is set when selection stopped because the next file
	// would have crossed the ceiling.
	Truncated bool
}

// CategoryTokens sums the tokens of the files in category c.
func (l *Library) CategoryTokens(c Category) int {
	total := 0
	for _, f := range l.Categories[c] {
		total += f.Tokens
	}
	return total
}

// Options controls a load. The zero value is usable; see DefaultOptions.
type Options struct {
	MaxTokens        int                  `json:"max_tokens"`
	PrioritizeRecent bool                 `json:"prioritize_recent"`
	CategoryWeights  map[Category]float64 `json:"category_weights,omitempty"`
	MinFileSize      int64                `json:"min_file_size"`
	MaxFileSize      int64                `json:"max_file_size"` // 0 = unbounded
	Include          []string             `json:"include,omitempty"`
	Exclude          []string             `json:"exclude,omitempty"`
}

const (
	// DefaultMaxTokens is the budget used when Options.MaxTokens is unset.
	DefaultMaxTokens = 1_000_000

	// CeilingRatio reserves headroom below MaxTokens for the model's reply.
	CeilingRatio = 0.9

	// RecencyEpsilon is the priority distance within which recency may
	// reorder candidates.
	RecencyEpsilon = 0.1
)

// DefaultOptions returns the options used by the CLI when nothing is
// configured.
func DefaultOptions() Options {
	return Options{
		MaxTokens:        DefaultMaxTokens,
		PrioritizeRecent: true,
		MaxFileSize:      1 << 20,
	}
}

// Ceiling returns the working token ceiling for these options.
func (o Options) Ceiling() int {
	limit := o.MaxTokens
	if limit <= 0 {
		limit = DefaultMaxTokens
	}
	return int(float64(limit) * CeilingRatio)
}

func (o Options) weight(c Category) float64 {
	if w, ok := o.CategoryWeights[c]; ok {
		return w
	}
	if w, ok := DefaultCategoryWeights[c]; ok {
		return w
	}
	return DefaultCategoryWeights[CategoryOther]
}

// Priority scores a candidate: category weight plus boosts, clamped to
// [0, 1]. Boosts only ever raise the score.
func (o Options) Priority(c Candidate) float64 {
	boost := c.Boost
	if boost < 0 {
		boost = 0
	}
	p := o.weight(c.Category) + boost
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}
