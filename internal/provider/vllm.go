package provider

import (
	"context"
	"fmt"
)

// VLLMProvider implements Provider for vLLM servers
type VLLMProvider struct {
	*BaseProvider
}

// NewVLLMProvider creates a new vLLM provider
func NewVLLMProvider(name, host, apiKey string) *VLLMProvider {
	return &VLLMProvider{BaseProvider: NewBaseProvider(TypeVLLM, name, host, apiKey)}
}

// DetectModels queries available models from the vLLM server
func (p *VLLMProvider) DetectModels(ctx context.Context) ([]string, error) {
	return p.DetectModelsOpenAI(ctx)
}

// DetectContextWindow reads max_model_len for the selected model from
// /v1/models
func (p *VLLMProvider) DetectContextWindow(ctx context.Context) (int, error) {
	model := p.info.Model
	if w := p.reportedWindow(model); w > 0 {
		p.info.ContextWindow = w
		return w, nil
	}
	if _, err := p.DetectModelsOpenAI(ctx); err != nil {
		return 0, err
	}
	if w := p.reportedWindow(model); w > 0 {
		p.info.ContextWindow = w
		return w, nil
	}
	return 0, fmt.Errorf("vllm did not report max_model_len for %q", model)
}
