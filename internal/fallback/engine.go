// Package fallback fits an oversized context into a provider's token
// budget by walking an ordered list of strategies until one succeeds.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mdresch/requirements-gathering-agent/internal/tokens"
)

// Default reduction thresholds, in percent.
const (
	DefaultWarnReduction    = 50.0
	DefaultConfirmReduction = 70.0
)

// Options describes the call site of one Apply.
type Options struct {
	CurrentProvider string
	CurrentModel    string

	// MinWindow is the smallest window a switched-to provider needs. It
	// covers prompt and reply headroom on top of the context; values below
	// the original token count are ignored.
	MinWindow int
}

// Engine applies fallback strategies. It holds no per-call state and is
// safe for concurrent use.
type Engine struct {
	est        tokens.Estimator
	reducers   []Reducer
	profiles   map[string]*rules
	logger     *slog.Logger
	warnPct    float64
	confirmPct float64
}

// EngineOption configures an Engine.
type EngineOption func(*engineConfig)

type engineConfig struct {
	reducers   []Reducer
	profiles   map[string]Profile
	logger     *slog.Logger
	warnPct    float64
	confirmPct float64
}

// WithReducers replaces the default strategy order.
func WithReducers(r ...Reducer) EngineOption {
	return func(c *engineConfig) { c.reducers = r }
}

// WithProfiles adds or replaces document type profiles.
func WithProfiles(p map[string]Profile) EngineOption {
	return func(c *engineConfig) {
		for name, prof := range p {
			c.profiles[NormalizeDocumentType(name)] = prof
		}
	}
}

// WithThresholds sets the reduction percentages that trigger a warning
// and a confirmation request. Non-positive values keep the defaults.
func WithThresholds(warn, confirm float64) EngineOption {
	return func(c *engineConfig) {
		if warn > 0 {
			c.warnPct = warn
		}
		if confirm > 0 {
			c.confirmPct = confirm
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(c *engineConfig) { c.logger = logger }
}

// NewEngine creates an Engine. The default order is provider switch,
// prioritization, summarization, chunking; registry may be nil, in which
// case provider switching always fails.
func NewEngine(est tokens.Estimator, registry CapabilityRegistry, opts ...EngineOption) *Engine {
	if est == nil {
		est = tokens.NewCharEstimator(0)
	}
	cfg := &engineConfig{
		profiles:   DefaultProfiles(),
		logger:     slog.Default(),
		warnPct:    DefaultWarnReduction,
		confirmPct: DefaultConfirmReduction,
	}
	if registry != nil {
		cfg.reducers = []Reducer{ProviderSwitch{Registry: registry}, Prioritization{}, Summarization{}, Chunking{}}
	} else {
		cfg.reducers = []Reducer{ProviderSwitch{}, Prioritization{}, Summarization{}, Chunking{}}
	}
	for _, opt := range opts {
		opt(cfg)
	}

	e := &Engine{
		est:        est,
		reducers:   cfg.reducers,
		profiles:   make(map[string]*rules, len(cfg.profiles)),
		logger:     cfg.logger,
		warnPct:    cfg.warnPct,
		confirmPct: cfg.confirmPct,
	}
	for name, p := range cfg.profiles {
		e.profiles[name] = compileProfile(name, p, e.logger)
	}
	return e
}

func (e *Engine) rulesFor(docType string) *rules {
	if r, ok := e.profiles[NormalizeDocumentType(docType)]; ok {
		return r
	}
	return e.profiles[DefaultProfile]
}

// Apply fits content into target tokens for docType. Content already
// within target comes back untouched with StrategyNone. When every
// strategy fails the Result has Success false and Err reports a
// *CapacityError; the returned error is reserved for bad input and
// cancellation.
func (e *Engine) Apply(ctx context.Context, content, docType string, target int, opts Options) (*Result, error) {
	if target <= 0 {
		return nil, fmt.Errorf("fallback: target must be positive, got %d", target)
	}

	original := e.est.Estimate(content)
	res := &Result{
		Strategy:         StrategyNone,
		ProcessedContent: content,
		DocumentType:     docType,
		OriginalTokens:   original,
		FinalTokens:      original,
		TargetTokens:     target,
	}
	if original <= target {
		res.Success = true
		return res, nil
	}

	in := Input{
		Content:        content,
		DocumentType:   docType,
		Target:         target,
		OriginalTokens: original,
		Options:        opts,
		Estimator:      e.est,
		rules:          e.rulesFor(docType),
	}

	for _, r := range e.reducers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}

		strategy := r.Strategy()
		out, err := r.Reduce(ctx, in)
		final := 0
		if err == nil {
			final, err = e.check(strategy, out, original, target)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("fallback: %w", ctxErr)
			}
			e.logger.Debug("fallback strategy failed", "strategy", strategy, "document_type", docType, "error", err)
			res.Attempts = append(res.Attempts, Attempt{Strategy: strategy, Tokens: final, Error: err.Error()})
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", strategy, err))
			continue
		}

		res.Attempts = append(res.Attempts, Attempt{Strategy: strategy, Tokens: final})
		res.Strategy = strategy
		res.ProcessedContent = out.Content
		res.FinalTokens = final
		res.Provider = out.Provider
		res.Warnings = append(res.Warnings, out.Warnings...)
		res.Success = true
		e.flagReduction(res)

		e.logger.Debug("fallback strategy applied",
			"strategy", strategy,
			"document_type", docType,
			"original_tokens", original,
			"final_tokens", final,
			"target", target)
		return res, nil
	}

	e.logger.Warn("context does not fit after all fallback strategies",
		"document_type", docType, "original_tokens", original, "target", target)
	return res, nil
}

// check verifies a proposal against the budget and returns its size.
// Provider switches keep content as is and are exempt.
func (e *Engine) check(s Strategy, out Outcome, original, target int) (int, error) {
	final := e.est.Estimate(out.Content)
	if s == StrategyProviderSwitch {
		if out.Provider == nil {
			return final, errors.New("no provider selected")
		}
		return final, nil
	}
	if strings.TrimSpace(out.Content) == "" {
		return final, errors.New("produced no content")
	}
	if final > target {
		return final, fmt.Errorf("result of %d tokens exceeds target %d", final, target)
	}
	if final > original {
		return final, fmt.Errorf("result of %d tokens grew past the original %d", final, original)
	}
	return final, nil
}

func (e *Engine) flagReduction(res *Result) {
	pct := res.ReductionPercentage()
	if pct > e.warnPct {
		res.Warnings = append(res.Warnings, fmt.Sprintf("content reduced by %.1f%% using %s", pct, res.Strategy))
		e.logger.Warn("aggressive context reduction",
			"strategy", res.Strategy,
			"document_type", res.DocumentType,
			"reduction_pct", pct,
			"original_tokens", res.OriginalTokens,
			"final_tokens", res.FinalTokens)
	}
	if pct > e.confirmPct {
		res.RequiresConfirmation = true
	}
}
