package fallback

import (
	"fmt"
	"strings"

	"github.com/mdresch/requirements-gathering-agent/internal/provider"
)

// Strategy names one way of fitting content into a token budget.
type Strategy string

const (
	StrategyNone           Strategy = "none"
	StrategyProviderSwitch Strategy = "provider-switch"
	StrategyPrioritization Strategy = "prioritization"
	StrategySummarization  Strategy = "summarization"
	StrategyChunking       Strategy = "chunking"
)

// Attempt records one strategy's run during Apply.
type Attempt struct {
	Strategy Strategy `json:"strategy"`
	Tokens   int      `json:"tokens,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Result is the outcome of one Apply call.
type Result struct {
	Strategy         Strategy `json:"strategy"`
	ProcessedContent string   `json:"-"`
	DocumentType     string   `json:"document_type"`
	OriginalTokens   int      `json:"original_tokens"`
	FinalTokens      int      `json:"final_tokens"`
	TargetTokens     int      `json:"target_tokens"`
	Success          bool     `json:"success"`

	// Provider is set when the provider-switch strategy won. Content is
	// untouched and the effective ceiling becomes Provider.ContextWindow.
	Provider *provider.Capability `json:"provider,omitempty"`

	// RequiresConfirmation is set when the reduction is above the
	// engine's confirmation threshold.
	RequiresConfirmation bool `json:"requires_confirmation,omitempty"`

	Warnings []string  `json:"warnings,omitempty"`
	Errors   []string  `json:"errors,omitempty"`
	Attempts []Attempt `json:"attempts,omitempty"`
}

// ReductionPercentage is how much of the original content was removed,
// in percent. Provider switches and untouched content report 0.
func (r *Result) ReductionPercentage() float64 {
	if r.OriginalTokens <= 0 || r.FinalTokens >= r.OriginalTokens {
		return 0
	}
	return float64(r.OriginalTokens-r.FinalTokens) / float64(r.OriginalTokens) * 100
}

// Err returns a *CapacityError for a failed result and nil otherwise.
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	return &CapacityError{
		DocumentType:   r.DocumentType,
		OriginalTokens: r.OriginalTokens,
		TargetTokens:   r.TargetTokens,
		Attempts:       r.Attempts,
	}
}

// CapacityError means content could not be made to fit by any strategy.
type CapacityError struct {
	DocumentType   string
	OriginalTokens int
	TargetTokens   int
	Attempts       []Attempt
}

func (e *CapacityError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "context of %d tokens does not fit %d-token target for %s",
		e.OriginalTokens, e.TargetTokens, e.DocumentType)
	for _, a := range e.Attempts {
		if a.Error != "" {
			fmt.Fprintf(&sb, "; %s: %s", a.Strategy, a.Error)
		}
	}
	return sb.String()
}
