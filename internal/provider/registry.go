package provider

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
)

// DefaultContextWindow is assumed for models nobody has described.
const DefaultContextWindow = 128_000

// modelWindows maps model names to input windows. Lookups also match
// dated or quantized variants by longest prefix ("gpt-4o-2024-08-06").
var modelWindows = map[string]int{
	// Anthropic Claude.
	"claude-opus-4":     200_000,
	"claude-sonnet-4":   200_000,
	"claude-3-5-sonnet": 200_000,
	"claude-3-5-haiku":  200_000,
	"claude-3-opus":     200_000,

	// OpenAI.
	"gpt-4o":        128_000,
	"gpt-4o-mini":   128_000,
	"gpt-4-turbo":   128_000,
	"gpt-4.1":       1_047_576,
	"gpt-4":         8_192,
	"gpt-4-32k":     32_768,
	"gpt-3.5-turbo": 16_385,
	"o1":            200_000,
	"o3":            200_000,
	"o3-mini":       200_000,

	// Google Gemini.
	"gemini-2.0-flash": 1_048_576,
	"gemini-1.5-flash": 1_048_576,
	"gemini-1.5-pro":   2_097_152,

	// Open weights, common deployments.
	"deepseek-chat": 64_000,
	"mistral-large": 128_000,
	"mistral-small": 32_000,
	"llama-3.1":     128_000,
	"llama3.1":      128_000,
	"llama3":        8_192,
	"qwen2.5":       32_768,
}

// ModelContextWindow looks up a model's window by exact name, then by the
// longest known prefix.
func ModelContextWindow(model string) (int, bool) {
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		return 0, false
	}
	if w, ok := modelWindows[model]; ok {
		return w, true
	}
	best, window := "", 0
	for name, w := range modelWindows {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best, window = name, w
		}
	}
	return window, best != ""
}

// Capability is what the registry knows about one configured provider.
type Capability struct {
	Name          string
	Vendor        Type
	Host          string
	Model         string
	ContextWindow int
}

// Registry answers window questions about configured providers. It is
// safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

// Register adds or replaces a capability. A missing window is filled from
// the model table, then DefaultContextWindow.
func (r *Registry) Register(c Capability) {
	if c.ContextWindow <= 0 {
		if w, ok := ModelContextWindow(c.Model); ok {
			c.ContextWindow = w
		} else {
			c.ContextWindow = DefaultContextWindow
		}
	}
	r.mu.Lock()
	r.caps[c.Name] = c
	r.mu.Unlock()
}

// RegisterProvider records a live provider, asking the server for its
// window first. Detection failures fall back to the table and are logged.
func (r *Registry) RegisterProvider(ctx context.Context, p Provider, configuredWindow int) Capability {
	info := p.Info()
	c := Capability{
		Name:          info.Name,
		Vendor:        info.Type,
		Host:          info.Host,
		Model:         info.Model,
		ContextWindow: configuredWindow,
	}
	if c.ContextWindow <= 0 {
		w, err := p.DetectContextWindow(ctx)
		if err != nil {
			slog.Debug("context window detection failed", "provider", info.Name, "model", info.Model, "error", err)
		}
		c.ContextWindow = w
	}
	r.Register(c)
	got, _ := r.Get(c.Name)
	return got
}

// Get returns the capability registered under name.
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	return c, ok
}

// GetMaxWindow returns the input window for provider serving model. An
// empty model means the provider's configured model. A different model on
// a known provider is answered from the model table.
func (r *Registry) GetMaxWindow(provider, model string) (int, bool) {
	c, ok := r.Get(provider)
	if !ok {
		return 0, false
	}
	if model == "" || strings.EqualFold(model, c.Model) {
		return c.ContextWindow, true
	}
	return ModelContextWindow(model)
}

// OptimalProviderForLargeContext returns the provider with the largest
// window that holds at least minTokens, ignoring the excluded names. Ties
// go to the lexically first name.
func (r *Registry) OptimalProviderForLargeContext(minTokens int, exclude ...string) (Capability, bool) {
	var best Capability
	found := false
	for _, c := range r.List() {
		if c.ContextWindow < minTokens || slices.Contains(exclude, c.Name) {
			continue
		}
		if !found || c.ContextWindow > best.ContextWindow {
			best, found = c, true
		}
	}
	return best, found
}

// List returns every capability sorted by name.
func (r *Registry) List() []Capability {
	r.mu.RLock()
	out := make([]Capability, 0, len(r.caps))
	for _, c := range r.caps {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
