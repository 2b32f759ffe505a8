package runlog

import "time"

// Status is the terminal state of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Record captures one document generation run for later diagnosis.
type Record struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	Duration     time.Duration `json:"duration_ns"`
	DocumentType string        `json:"document_type"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model,omitempty"`
	Status       Status        `json:"status"`
	Error        string        `json:"error,omitempty"`

	Library  *LibraryStats  `json:"library,omitempty"`
	Fallback *FallbackStats `json:"fallback,omitempty"`
	Breaker  *BreakerStats  `json:"breaker,omitempty"`
	Usage    *TokenUsage    `json:"usage,omitempty"`
}

// LibraryStats summarizes the loaded project library.
type LibraryStats struct {
	Files     int  `json:"files"`
	Tokens    int  `json:"tokens"`
	Ceiling   int  `json:"ceiling"`
	Skipped   int  `json:"skipped"`
	Truncated bool `json:"truncated"`
}

// FallbackStats summarizes the fallback engine outcome.
type FallbackStats struct {
	Strategy       string   `json:"strategy"`
	OriginalTokens int      `json:"original_tokens"`
	FinalTokens    int      `json:"final_tokens"`
	TargetTokens   int      `json:"target_tokens"`
	Reduction      float64  `json:"reduction_pct"`
	SwitchedTo     string   `json:"switched_to,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// BreakerStats is the provider's circuit breaker after the call.
type BreakerStats struct {
	State    string `json:"state"`
	Failures int    `json:"failures"`
	Attempts int    `json:"attempts"`
}

// TokenUsage tracks token consumption reported by the provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
