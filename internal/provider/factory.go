package provider

import (
	"context"
	"fmt"
)

// New creates a provider from configuration. An empty or "auto" vendor is
// detected from the host.
func New(ctx context.Context, name, host, vendor, apiKey string) (Provider, error) {
	providerType := ParseVendorConfig(vendor)
	if providerType == TypeOpenAI {
		return NewOpenAIProvider(name, host, apiKey), nil
	}

	if host == "" {
		return nil, fmt.Errorf("provider %s: host is required", name)
	}
	if providerType == TypeUnknown {
		providerType = Detect(ctx, host)
	}
	return NewWithType(providerType, name, host, apiKey)
}

// NewWithType creates a provider with an explicit type (no auto-detection)
func NewWithType(providerType Type, name, host, apiKey string) (Provider, error) {
	if host == "" && providerType != TypeOpenAI {
		return nil, fmt.Errorf("provider %s: host is required", name)
	}

	switch providerType {
	case TypeOllama:
		return NewOllamaProvider(name, host, apiKey), nil
	case TypeLlamaCpp:
		return NewLlamaCppProvider(name, host, apiKey), nil
	case TypeOpenAI:
		return NewOpenAIProvider(name, host, apiKey), nil
	default:
		// vLLM is the most broadly compatible
		return NewVLLMProvider(name, host, apiKey), nil
	}
}
