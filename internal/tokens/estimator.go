// Package tokens estimates how many model input tokens a piece of text
// will consume.
//
// Estimates are an engineering approximation, not a provider's real
// tokenizer. Every budget decision in this module goes through the same
// Estimator for the lifetime of a run, so the arithmetic is repeatable
// even where it is not exact.
package tokens

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// DefaultCharsPerToken is conservative for English prose mixed with code.
// BPE tokenizers average 3.5-4.5 characters per token, so 4.0 slightly
// overestimates and budgets are hit early rather than late.
const DefaultCharsPerToken = 4.0

// Estimator maps text to an approximate token count. Implementations must
// be deterministic and non-decreasing in the length of the input.
type Estimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens from a fixed characters-per-token ratio.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator returns a CharEstimator using ratio, or
// DefaultCharsPerToken when ratio is not positive.
func NewCharEstimator(ratio float64) *CharEstimator {
	if ratio <= 0 {
		ratio = DefaultCharsPerToken
	}
	return &CharEstimator{CharsPerToken: ratio}
}

// Estimate returns ceil(runes / ratio). Empty text is zero tokens.
func (e *CharEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	ratio := e.CharsPerToken
	if ratio <= 0 {
		ratio = DefaultCharsPerToken
	}
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / ratio))
}

// TiktokenEstimator counts tokens with a BPE encoding. It is closer to
// OpenAI-family tokenizers but still only an approximation for other
// providers.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads the named encoding (cl100k_base when empty).
func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: get encoding %s: %w", encoding, err)
	}
	return &TiktokenEstimator{enc: enc}, nil
}

// Estimate returns the number of BPE tokens in text.
func (e *TiktokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(e.enc.Encode(text, nil, nil))
}

// New returns the estimator selected by name: "chars" (or empty) and
// "tiktoken". A tiktoken encoding that cannot be loaded falls back to the
// character estimator and reports the load error alongside it.
func New(name string, ratio float64) (Estimator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "chars", "char":
		return NewCharEstimator(ratio), nil
	case "tiktoken", "cl100k", "cl100k_base":
		enc, err := NewTiktokenEstimator("cl100k_base")
		if err != nil {
			return NewCharEstimator(ratio), err
		}
		return enc, nil
	default:
		return NewCharEstimator(ratio), fmt.Errorf("unknown tokenizer %q", name)
	}
}
