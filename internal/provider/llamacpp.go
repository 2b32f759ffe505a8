package provider

import (
	"context"
	"fmt"
)

// LlamaCppProvider implements Provider for llama.cpp servers (llama-server)
type LlamaCppProvider struct {
	*BaseProvider
}

// NewLlamaCppProvider creates a new llama.cpp provider
func NewLlamaCppProvider(name, host, apiKey string) *LlamaCppProvider {
	return &LlamaCppProvider{BaseProvider: NewBaseProvider(TypeLlamaCpp, name, host, apiKey)}
}

// DetectModels queries available models from the llama.cpp server
// llama.cpp typically serves a single model, but supports /v1/models endpoint
func (p *LlamaCppProvider) DetectModels(ctx context.Context) ([]string, error) {
	return p.DetectModelsOpenAI(ctx)
}

// DetectContextWindow reads the server's n_ctx from /props. llama-server
// has one context size for whatever model it loaded.
func (p *LlamaCppProvider) DetectContextWindow(ctx context.Context) (int, error) {
	var props struct {
		NCtx                      int `json:"n_ctx"`
		DefaultGenerationSettings struct {
			NCtx int `json:"n_ctx"`
		} `json:"default_generation_settings"`
	}
	if err := p.getJSON(ctx, p.info.Host+"/props", &props); err != nil {
		return 0, err
	}

	w := props.DefaultGenerationSettings.NCtx
	if w == 0 {
		w = props.NCtx
	}
	if w <= 0 {
		return 0, fmt.Errorf("llama.cpp /props did not report n_ctx")
	}
	p.info.ContextWindow = w
	return w, nil
}
