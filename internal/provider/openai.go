package provider

import (
	"context"
	"fmt"
)

// OpenAIProvider implements Provider for hosted OpenAI-compatible APIs
// that do not expose context window metadata.
type OpenAIProvider struct {
	*BaseProvider
}

// NewOpenAIProvider creates a provider for a hosted API. An empty host
// means api.openai.com.
func NewOpenAIProvider(name, host, apiKey string) *OpenAIProvider {
	if host == "" {
		host = "https://api.openai.com"
	}
	return &OpenAIProvider{BaseProvider: NewBaseProvider(TypeOpenAI, name, host, apiKey)}
}

// DetectModels lists models via /v1/models
func (p *OpenAIProvider) DetectModels(ctx context.Context) ([]string, error) {
	return p.DetectModelsOpenAI(ctx)
}

// DetectContextWindow uses the known-model table; hosted APIs do not
// report windows.
func (p *OpenAIProvider) DetectContextWindow(ctx context.Context) (int, error) {
	if w, ok := ModelContextWindow(p.info.Model); ok {
		p.info.ContextWindow = w
		return w, nil
	}
	return 0, fmt.Errorf("unknown context window for model %q", p.info.Model)
}
